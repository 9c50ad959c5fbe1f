package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Target is a compiler output format.
type Target uint8

const (
	TargetSPIRV Target = iota
	TargetDXIL
	TargetHLSL
)

func (t Target) String() string {
	switch t {
	case TargetSPIRV:
		return "spirv"
	case TargetDXIL:
		return "dxil"
	case TargetHLSL:
		return "hlsl"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ParseTarget parses a target name.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "spirv", "spir-v", "spv":
		return TargetSPIRV, nil
	case "dxil":
		return TargetDXIL, nil
	case "hlsl":
		return TargetHLSL, nil
	}
	return 0, fmt.Errorf("shader: unknown target %q", s)
}

// TargetFor returns the bytecode format consumed by backend.
func TargetFor(backend gputypes.Backend) Target {
	if backend == gputypes.BackendDX12 {
		return TargetDXIL
	}
	return TargetSPIRV
}
