package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/framecore/internal/cache"
	"github.com/gogpu/framecore/internal/logging"
	"github.com/gogpu/wgpu/hal"
)

// DefaultCapacity is the default number of cached compilations.
const DefaultCapacity = 256

// Stats reports cache effectiveness.
type Stats = cache.Stats

type key struct {
	stage  Stage
	path   string
	entry  string
	target Target
}

// Cache compiles shader files and memoizes the results. It is safe for
// concurrent use.
type Cache struct {
	root     string
	fsys     fs.FS
	target   Target
	model    Model
	debug    bool
	capacity int
	logger   *slog.Logger
	onChange func(path string)
	customFS bool

	mu      sync.Mutex
	active  bool
	entries *cache.Cache[key, *Compiled]
	stop    func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithTarget selects the output format.
func WithTarget(t Target) Option {
	return func(c *Cache) { c.target = t }
}

// WithModel selects the shader model used for profiles and DXIL.
func WithModel(m Model) Option {
	return func(c *Cache) { c.model = m }
}

// WithDebug keeps debug information in the output.
func WithDebug(debug bool) Option {
	return func(c *Cache) { c.debug = debug }
}

// WithCapacity bounds the number of cached results.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrNop(l) }
}

// WithFS reads sources from fsys instead of the data root directory.
// Watch is unavailable on such caches.
func WithFS(fsys fs.FS) Option {
	return func(c *Cache) {
		c.fsys = fsys
		c.customFS = fsys != nil
	}
}

// WithOnChange registers fn to run after Watch evicts a changed file. fn
// runs on the watcher goroutine.
func WithOnChange(fn func(path string)) Option {
	return func(c *Cache) { c.onChange = fn }
}

// New returns an uninitialized cache reading shaders under dataRoot.
func New(dataRoot string, opts ...Option) *Cache {
	c := &Cache{
		root:     dataRoot,
		target:   TargetSPIRV,
		model:    DefaultModel,
		capacity: DefaultCapacity,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fsys == nil {
		c.fsys = os.DirFS(dataRoot)
	}
	return c
}

// Init activates the cache. Calling Init on an active cache does nothing.
func (c *Cache) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil
	}
	c.entries = cache.New[key, *Compiled](c.capacity)
	c.active = true
	c.logger.Info("shader cache initialized",
		"root", c.root, "target", c.target.String(), "model", c.model.String())
	return nil
}

// Close stops any watcher and drops every cached result. Calling Close on
// an inactive cache does nothing.
func (c *Cache) Close() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	stop := c.stop
	c.stop = nil
	c.entries.Clear()
	c.entries = nil
	c.active = false
	c.mu.Unlock()

	// The watcher takes c.mu to evict, so it is stopped unlocked.
	if stop != nil {
		stop()
	}
	c.logger.Debug("shader cache closed")
	return nil
}

// Active reports whether the cache is initialized.
func (c *Cache) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Root returns the data root.
func (c *Cache) Root() string { return c.root }

// Target returns the output format.
func (c *Cache) Target() Target { return c.target }

func (c *Cache) store() (*cache.Cache[key, *Compiled], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, ErrNotInitialized
	}
	return c.entries, nil
}

// CompileFromFile compiles the entry point entry of stage from the WGSL
// file at p, relative to the data root.
func (c *Cache) CompileFromFile(stage Stage, p, entry string) (*Compiled, error) {
	entries, err := c.store()
	if err != nil {
		return nil, err
	}
	name, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	if !stage.Supported() {
		c.logger.Error("unsupported shader stage", "path", name, "stage", stage.String())
		return nil, &CompileError{Path: name, Entry: entry, Stage: stage, Target: c.target,
			Phase: "resolve", Err: fmt.Errorf("%w: %s", ErrUnsupportedStage, stage)}
	}

	k := key{stage: stage, path: name, entry: entry, target: c.target}
	return entries.GetOrCreate(k, func() (*Compiled, error) {
		src, err := fs.ReadFile(c.fsys, name)
		if err != nil {
			c.logger.Error("shader source not found", "path", filepath.Join(c.root, name), "err", err)
			return nil, &CompileError{Path: name, Entry: entry, Stage: stage, Target: c.target,
				Phase: "read", Err: fmt.Errorf("%w: %w", ErrSourceNotFound, err)}
		}
		out, err := c.compile(name, string(src), stage, entry)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("shader compiled", "path", name, "entry", entry,
			"profile", out.Profile, "target", out.Target.String(), "bytes", out.Size())
		return out, nil
	})
}

// Compile compiles source without caching. name labels diagnostics.
func (c *Cache) Compile(stage Stage, name, source, entry string) (*Compiled, error) {
	if _, err := c.store(); err != nil {
		return nil, err
	}
	return c.compile(name, source, stage, entry)
}

func (c *Cache) compile(name, source string, stage Stage, entry string) (*Compiled, error) {
	out, err := compile(compileRequest{
		path:   name,
		source: source,
		stage:  stage,
		entry:  entry,
		target: c.target,
		model:  c.model,
		debug:  c.debug,
	})
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			c.logger.Error("shader compilation failed", "path", name, "entry", entry,
				"stage", stage.String(), "phase", ce.Phase, "err", ce.Err,
				"diagnostics", strings.Join(ce.Diagnostics, "; "))
		}
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached result compiled from p and returns the
// number dropped.
func (c *Cache) Invalidate(p string) int {
	entries, err := c.store()
	if err != nil {
		return 0
	}
	name, err := cleanPath(p)
	if err != nil {
		return 0
	}
	return entries.DeleteFunc(func(k key, _ *Compiled) bool { return k.path == name })
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	entries, err := c.store()
	if err != nil {
		return 0
	}
	return entries.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	entries, err := c.store()
	if err != nil {
		return Stats{}
	}
	return entries.Stats()
}

// CreateModule creates a shader module from compiled on device. SPIR-V
// results are passed as words; other targets hand the WGSL source to the
// backend, which compiles it with its own toolchain.
func (c *Cache) CreateModule(device hal.Device, compiled *Compiled) (hal.ShaderModule, error) {
	if compiled == nil || len(compiled.Bytecode) == 0 {
		return nil, fmt.Errorf("shader: create module from empty bytecode")
	}
	src := hal.ShaderSource{WGSL: compiled.Source}
	if compiled.Target == TargetSPIRV {
		src = hal.ShaderSource{SPIRV: compiled.Words()}
	}
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  compiled.Path + ":" + compiled.Entry,
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create module %s:%s: %w", compiled.Path, compiled.Entry, err)
	}
	return m, nil
}

// cleanPath turns p into a slash-separated path relative to the root.
func cleanPath(p string) (string, error) {
	name := path.Clean(filepath.ToSlash(p))
	name = strings.TrimPrefix(name, "./")
	if !fs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return name, nil
}
