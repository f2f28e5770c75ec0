// Package platform defines the closed set of build platforms and
// architectures together with the per-platform traits every later stage
// consumes. Nothing outside this package branches on raw platform strings.
package platform

import (
	"fmt"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/foundation/normalization"
)

// Platform identifies one build platform. The zero value is invalid.
type Platform string

const (
	Mac               Platform = "mac"
	IOS               Platform = "ios"
	IOSSimulator      Platform = "iossim"
	VisionOS          Platform = "visionos"
	VisionOSSimulator Platform = "visionossim"
	Android           Platform = "android"
	Windows           Platform = "win"
	Linux             Platform = "linux"
	Wasm              Platform = "wasm"
)

// All returns every supported platform in a stable order.
func All() []Platform {
	return []Platform{Mac, IOS, IOSSimulator, VisionOS, VisionOSSimulator, Android, Windows, Linux, Wasm}
}

func (p Platform) String() string { return string(p) }

// Family groups platforms that share toolchain and configuration conventions.
type Family string

const (
	FamilyApple   Family = "apple"
	FamilyAndroid Family = "android"
	FamilyWindows Family = "windows"
	FamilyLinux   Family = "linux"
	FamilyWasm    Family = "wasm"
)

var platformNames = normalization.NewNormalizer("platform", map[string]Platform{
	"mac":         Mac,
	"macos":       Mac,
	"ios":         IOS,
	"iossim":      IOSSimulator,
	"visionos":    VisionOS,
	"visionossim": VisionOSSimulator,
	"android":     Android,
	"win":         Windows,
	"windows":     Windows,
	"linux":       Linux,
	"wasm":        Wasm,
}, "")

// Parse maps a CLI identifier onto a Platform.
func Parse(id string) (Platform, error) {
	p, err := platformNames.Parse(id)
	if err != nil || p == "" {
		return "", errors.UnsupportedPlatform(id).WithCause(err).Build()
	}
	return p, nil
}

// Traits is the strongly typed description of one platform.
type Traits struct {
	Platform Platform
	Family   Family

	// Arches lists every architecture the platform can target, in merge order.
	Arches []Arch
	// DefaultArches is used when a request names no architecture.
	DefaultArches []Arch
	// DefaultUniversal marks platforms whose default deliverable is one
	// multi-architecture binary per library.
	DefaultUniversal bool
	// Universal reports whether lipo-style merging is available at all.
	Universal bool

	GPU         bool
	MultipleCRT bool
	Simulator   bool

	// MinOS is the deployment target (Android: API level).
	MinOS string
	// SDK is the Apple SDK directory stem (MacOSX, iPhoneOS, ...).
	SDK string
	// GNOS is the GN target_os value.
	GNOS string

	libPrefix string
	libSuffix string
}

// LibFile returns the static archive file name for a library.
func (t Traits) LibFile(name string) string {
	return t.libPrefix + name + t.libSuffix
}

// SupportsArch reports whether a is one of the platform's architectures.
func (t Traits) SupportsArch(a Arch) bool {
	for _, candidate := range t.Arches {
		if candidate == a {
			return true
		}
	}
	return false
}

// Lookup returns the traits for p.
func Lookup(p Platform) (Traits, error) {
	unix := func(t Traits) Traits {
		t.libPrefix, t.libSuffix = "lib", ".a"
		return t
	}

	switch p {
	case Mac:
		return unix(Traits{
			Platform: p, Family: FamilyApple,
			Arches:        []Arch{X86_64, Arm64},
			DefaultArches: []Arch{X86_64, Arm64},
			Universal:     true, DefaultUniversal: true,
			GPU: true, MinOS: "10.15", SDK: "MacOSX", GNOS: "mac",
		}), nil
	case IOS:
		return unix(Traits{
			Platform: p, Family: FamilyApple,
			Arches: []Arch{Arm64}, DefaultArches: []Arch{Arm64},
			GPU: true, MinOS: "14.0", SDK: "iPhoneOS", GNOS: "ios",
		}), nil
	case IOSSimulator:
		return unix(Traits{
			Platform: p, Family: FamilyApple,
			Arches: []Arch{X86_64, Arm64}, DefaultArches: []Arch{Arm64},
			Universal: true, GPU: true, Simulator: true,
			MinOS: "14.0", SDK: "iPhoneSimulator", GNOS: "ios",
		}), nil
	case VisionOS:
		return unix(Traits{
			Platform: p, Family: FamilyApple,
			Arches: []Arch{Arm64}, DefaultArches: []Arch{Arm64},
			GPU: true, MinOS: "1.0", SDK: "XROS", GNOS: "ios",
		}), nil
	case VisionOSSimulator:
		return unix(Traits{
			Platform: p, Family: FamilyApple,
			Arches: []Arch{Arm64}, DefaultArches: []Arch{Arm64},
			GPU: true, Simulator: true,
			MinOS: "1.0", SDK: "XRSimulator", GNOS: "ios",
		}), nil
	case Android:
		return unix(Traits{
			Platform: p, Family: FamilyAndroid,
			Arches: []Arch{Arm64, Arm, X64, X86}, DefaultArches: []Arch{Arm64},
			GPU: true, MinOS: "24", GNOS: "android",
		}), nil
	case Windows:
		return Traits{
			Platform: p, Family: FamilyWindows,
			Arches: []Arch{X64, Arm64}, DefaultArches: []Arch{X64},
			GPU: true, MultipleCRT: true, GNOS: "win",
			libSuffix: ".lib",
		}, nil
	case Linux:
		return unix(Traits{
			Platform: p, Family: FamilyLinux,
			Arches: []Arch{X64, Arm64}, DefaultArches: []Arch{X64},
			GPU: true, GNOS: "linux",
		}), nil
	case Wasm:
		return unix(Traits{
			Platform: p, Family: FamilyWasm,
			Arches: []Arch{Wasm32}, DefaultArches: []Arch{Wasm32},
			GNOS: "wasm",
		}), nil
	default:
		return Traits{}, errors.UnsupportedPlatform(string(p)).Build()
	}
}

// MustLookup is Lookup for platforms already validated by Parse.
func MustLookup(p Platform) Traits {
	t, err := Lookup(p)
	if err != nil {
		panic(fmt.Sprintf("platform: %v", err))
	}
	return t
}

// Simulator returns the simulator counterpart of an Apple device platform.
func (p Platform) Simulator() (Platform, bool) {
	switch p {
	case IOS:
		return IOSSimulator, true
	case VisionOS:
		return VisionOSSimulator, true
	default:
		return "", false
	}
}

// Device returns the device counterpart of an Apple simulator platform.
func (p Platform) Device() (Platform, bool) {
	switch p {
	case IOSSimulator:
		return IOS, true
	case VisionOSSimulator:
		return VisionOS, true
	default:
		return "", false
	}
}
