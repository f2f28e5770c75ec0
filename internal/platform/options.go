package platform

import "git.home.luguber.info/inful/libforge/internal/foundation/normalization"

// Variant selects the cpu-only or GPU-enabled library set.
type Variant string

const (
	VariantCPU Variant = "cpu"
	VariantGPU Variant = "gpu"
)

// CRT selects C runtime linkage on platforms with more than one choice.
type CRT string

const (
	CRTStatic  CRT = "static"
	CRTDynamic CRT = "dynamic"
)

// BuildType is the backend build configuration.
type BuildType string

const (
	Release BuildType = "Release"
	Debug   BuildType = "Debug"
)

// Unicode selects the text shaping backend.
type Unicode string

const (
	UnicodeICU         Unicode = "icu"
	UnicodeLibgrapheme Unicode = "libgrapheme"
)

// Target selects device, simulator or both for Apple mobile platforms.
type Target string

const (
	TargetDevice    Target = "device"
	TargetSimulator Target = "simulator"
	TargetAll       Target = "all"
)

var (
	variantNames = normalization.NewNormalizer("variant", map[string]Variant{
		"cpu": VariantCPU,
		"gpu": VariantGPU,
	}, VariantCPU)
	crtNames = normalization.NewNormalizer("crt", map[string]CRT{
		"static":  CRTStatic,
		"mt":      CRTStatic,
		"dynamic": CRTDynamic,
		"md":      CRTDynamic,
	}, CRTStatic)
	buildTypeNames = normalization.NewNormalizer("config", map[string]BuildType{
		"release": Release,
		"debug":   Debug,
	}, Release)
	unicodeNames = normalization.NewNormalizer("unicode", map[string]Unicode{
		"icu":         UnicodeICU,
		"libgrapheme": UnicodeLibgrapheme,
	}, UnicodeICU)
	targetNames = normalization.NewNormalizer("target", map[string]Target{
		"device":    TargetDevice,
		"simulator": TargetSimulator,
		"all":       TargetAll,
	}, TargetDevice)
)

func ParseVariant(raw string) (Variant, error)     { return variantNames.Parse(raw) }
func ParseCRT(raw string) (CRT, error)             { return crtNames.Parse(raw) }
func ParseBuildType(raw string) (BuildType, error) { return buildTypeNames.Parse(raw) }
func ParseUnicode(raw string) (Unicode, error)     { return unicodeNames.Parse(raw) }
func ParseTarget(raw string) (Target, error)       { return targetNames.Parse(raw) }

// IsDebug reports whether the build type is Debug.
func (b BuildType) IsDebug() bool { return b == Debug }
