package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/dxil"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Compiled is the result of a successful compilation.
type Compiled struct {
	Path    string
	Entry   string
	Stage   Stage
	Target  Target
	Profile string

	// Bytecode is the compiled blob: SPIR-V words in little-endian order,
	// a DXIL container, or HLSL text.
	Bytecode []byte

	// Source is the WGSL text the blob was compiled from.
	Source string
}

// Size returns the bytecode length in bytes.
func (c *Compiled) Size() int { return len(c.Bytecode) }

// Words returns the bytecode as little-endian 32-bit words, the layout
// SPIR-V consumers expect. Trailing bytes that do not fill a word are
// dropped.
func (c *Compiled) Words() []uint32 {
	words := make([]uint32, len(c.Bytecode)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(c.Bytecode[i*4:])
	}
	return words
}

type compileRequest struct {
	path   string
	source string
	stage  Stage
	entry  string
	target Target
	model  Model
	debug  bool
}

func compile(req compileRequest) (*Compiled, error) {
	fail := func(phase string, err error, diags ...string) error {
		return &CompileError{
			Path:        req.path,
			Entry:       req.entry,
			Stage:       req.stage,
			Target:      req.target,
			Phase:       phase,
			Diagnostics: diags,
			Err:         err,
		}
	}

	irStage, ok := req.stage.irStage()
	if !ok {
		return nil, fail("resolve", fmt.Errorf("%w: %s", ErrUnsupportedStage, req.stage))
	}

	ast, err := naga.Parse(req.source)
	if err != nil {
		return nil, fail("parse", err)
	}
	module, err := naga.LowerWithSource(ast, req.source)
	if err != nil {
		return nil, fail("lower", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fail("validate", err)
	}
	if len(verrs) > 0 {
		diags := make([]string, len(verrs))
		for i := range verrs {
			diags[i] = verrs[i].Error()
		}
		return nil, fail("validate", fmt.Errorf("%d validation errors", len(verrs)), diags...)
	}

	single, err := selectEntryPoint(module, req.entry, irStage)
	if err != nil {
		return nil, fail("resolve", err)
	}

	var code []byte
	switch req.target {
	case TargetSPIRV:
		code, err = naga.GenerateSPIRV(single, spirv.Options{Version: spirv.Version1_3, Debug: req.debug})
	case TargetDXIL:
		code, err = dxil.Compile(single, dxil.Options{ShaderModel: req.model.dxil()})
	case TargetHLSL:
		opts := hlsl.DefaultOptions()
		opts.ShaderModel = req.model.hlsl()
		opts.EntryPoint = req.entry
		var text string
		text, _, err = hlsl.Compile(single, opts)
		code = []byte(text)
	default:
		err = fmt.Errorf("unknown target %s", req.target)
	}
	if err != nil {
		return nil, fail("generate", err)
	}

	return &Compiled{
		Path:     req.path,
		Entry:    req.entry,
		Stage:    req.stage,
		Target:   req.target,
		Profile:  req.stage.Profile(req.model),
		Bytecode: code,
		Source:   req.source,
	}, nil
}

// selectEntryPoint returns a shallow copy of m exposing only the named
// entry point. Backends emit every entry point they see, and DXIL only the
// first.
func selectEntryPoint(m *ir.Module, name string, stage ir.ShaderStage) (*ir.Module, error) {
	for i := range m.EntryPoints {
		ep := m.EntryPoints[i]
		if ep.Name == name && ep.Stage == stage {
			single := *m
			single.EntryPoints = []ir.EntryPoint{ep}
			return &single, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrEntryPointNotFound, name)
}
