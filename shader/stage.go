package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/naga/dxil"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
)

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StagePixel
	StageCompute
	StageGeometry
	StageHull
	StageMesh
	StageDomain
)

var stageNames = [...]struct{ name, prefix string }{
	StageVertex:   {"vertex", "vs"},
	StagePixel:    {"pixel", "ps"},
	StageCompute:  {"compute", "cs"},
	StageGeometry: {"geometry", "gs"},
	StageHull:     {"hull", "hs"},
	StageMesh:     {"mesh", "ms"},
	StageDomain:   {"domain", "ds"},
}

// String returns the stage name.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s].name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Profile returns the target profile of s under model, e.g. "ps_6_7".
func (s Stage) Profile(model Model) string {
	if int(s) >= len(stageNames) {
		return ""
	}
	return fmt.Sprintf("%s_%d_%d", stageNames[s].prefix, model.Major, model.Minor)
}

// Supported reports whether the compiler can produce code for s. Geometry,
// hull and domain stages have no WGSL equivalent.
func (s Stage) Supported() bool {
	_, ok := s.irStage()
	return ok
}

func (s Stage) irStage() (ir.ShaderStage, bool) {
	switch s {
	case StageVertex:
		return ir.StageVertex, true
	case StagePixel:
		return ir.StageFragment, true
	case StageCompute:
		return ir.StageCompute, true
	case StageMesh:
		return ir.StageMesh, true
	default:
		return 0, false
	}
}

// ParseStage parses a stage name or profile prefix ("pixel", "ps",
// "fragment").
func ParseStage(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "fragment" {
		return StagePixel, nil
	}
	for i, s := range stageNames {
		if n == s.name || n == s.prefix {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("shader: unknown stage %q", name)
}

// Model is a shader model version.
type Model struct {
	Major uint8
	Minor uint8
}

// DefaultModel is shader model 6.7.
var DefaultModel = Model{Major: 6, Minor: 7}

func (m Model) String() string { return fmt.Sprintf("%d_%d", m.Major, m.Minor) }

// ParseModel parses "6_7", "6.7" or "sm_6_7".
func ParseModel(s string) (Model, error) {
	t := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "sm_")
	t = strings.ReplaceAll(t, ".", "_")
	major, minor, ok := strings.Cut(t, "_")
	if !ok {
		return Model{}, fmt.Errorf("shader: invalid shader model %q", s)
	}
	ma, err1 := strconv.ParseUint(major, 10, 8)
	mi, err2 := strconv.ParseUint(minor, 10, 8)
	if err1 != nil || err2 != nil {
		return Model{}, fmt.Errorf("shader: invalid shader model %q", s)
	}
	m := Model{Major: uint8(ma), Minor: uint8(mi)}
	if m.Major < 5 || m.Major > 6 || (m.Major == 5 && m.Minor > 1) || (m.Major == 6 && m.Minor > 9) {
		return Model{}, fmt.Errorf("shader: unsupported shader model %s", m)
	}
	return m, nil
}

func (m Model) dxil() dxil.ShaderModel {
	if m.Major < 6 {
		return dxil.SM6_0
	}
	return dxil.ShaderModel{Major: uint32(m.Major), Minor: uint32(m.Minor)}
}

func (m Model) hlsl() hlsl.ShaderModel {
	if m.Major < 6 {
		return hlsl.ShaderModel5_0 + hlsl.ShaderModel(m.Minor)
	}
	sm := hlsl.ShaderModel6_0 + hlsl.ShaderModel(m.Minor)
	if sm > hlsl.ShaderModel6_7 {
		sm = hlsl.ShaderModel6_7
	}
	return sm
}
