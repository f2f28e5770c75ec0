package platform

import (
	"git.home.luguber.info/inful/libforge/internal/foundation/normalization"
)

// Arch is a CPU architecture token as accepted on the command line.
type Arch string

const (
	X86_64 Arch = "x86_64"
	Arm64  Arch = "arm64"
	X64    Arch = "x64"
	Arm    Arch = "arm"
	X86    Arch = "x86"
	Wasm32 Arch = "wasm32"

	// Universal is a request token, never a member of a resolved plan.
	Universal Arch = "universal"
)

var archNames = normalization.NewNormalizer("architecture", map[string]Arch{
	"x86_64":    X86_64,
	"arm64":     Arm64,
	"aarch64":   Arm64,
	"x64":       X64,
	"arm":       Arm,
	"x86":       X86,
	"wasm32":    Wasm32,
	"wasm":      Wasm32,
	"universal": Universal,
}, "")

// ParseArch maps a CLI token onto an Arch. Unknown tokens are returned
// verbatim so the resolver can report them against the platform.
func ParseArch(token string) Arch {
	if a := archNames.Normalize(token); a != "" {
		return a
	}
	return Arch(token)
}

func (a Arch) String() string { return string(a) }

// GNCPU returns the GN target_cpu spelling.
func (a Arch) GNCPU() string {
	switch a {
	case X86_64:
		return "x64"
	case Wasm32:
		return "wasm"
	default:
		return string(a)
	}
}

// Is64 reports whether a is a 64-bit architecture.
func (a Arch) Is64() bool {
	switch a {
	case X86_64, Arm64, X64:
		return true
	default:
		return false
	}
}
