package resolve

import (
	"os"
	"path/filepath"
	"runtime"

	"git.home.luguber.info/inful/libforge/internal/platform"
)

// ToolchainKind names a host toolchain libforge locates.
type ToolchainKind string

const (
	ToolchainXcode   ToolchainKind = "xcode"
	ToolchainNDK     ToolchainKind = "ndk"
	ToolchainMSVC    ToolchainKind = "msvc"
	ToolchainLLVM    ToolchainKind = "llvm"
	ToolchainSysroot ToolchainKind = "sysroot"
	ToolchainEmsdk   ToolchainKind = "emsdk"
)

// Toolchain is the resolved toolchain for one architecture of a plan.
type Toolchain struct {
	Kind ToolchainKind
	Path string
	// SDKRoot is derived from Path (Apple SDK, Android NDK sysroot).
	SDKRoot string
	// Sysroot is set for cross builds that need a target root filesystem.
	Sysroot string
}

// Env is the view of the host the resolver consults. Tests replace every field.
type Env struct {
	Getenv   func(string) string
	Exists   func(string) bool
	HostOS   string
	HostArch string
	Home     string
}

// OSEnv returns the real host environment.
func OSEnv() Env {
	home, _ := os.UserHomeDir()
	return Env{
		Getenv: os.Getenv,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		HostOS:   runtime.GOOS,
		HostArch: runtime.GOARCH,
		Home:     home,
	}
}

type locator struct {
	env      []string
	defaults func(Env) []string
}

var locators = map[ToolchainKind]locator{
	ToolchainXcode: {
		env: []string{"DEVELOPER_DIR"},
		defaults: func(Env) []string {
			return []string{"/Applications/Xcode.app/Contents/Developer"}
		},
	},
	ToolchainNDK: {
		env: []string{"ANDROID_NDK_HOME", "ANDROID_NDK_ROOT"},
		defaults: func(e Env) []string {
			var out []string
			if e.Home != "" {
				out = append(out,
					filepath.Join(e.Home, "Library", "Android", "sdk", "ndk-bundle"),
					filepath.Join(e.Home, "Android", "Sdk", "ndk-bundle"),
				)
			}
			return append(out, "/opt/android-ndk")
		},
	},
	ToolchainMSVC: {
		env: []string{"VCINSTALLDIR"},
		defaults: func(Env) []string {
			base := "C:/Program Files/Microsoft Visual Studio/2022"
			return []string{
				base + "/Enterprise/VC",
				base + "/Professional/VC",
				base + "/Community/VC",
				base + "/BuildTools/VC",
			}
		},
	},
	ToolchainLLVM: {
		env: []string{"LLVM_HOME"},
		defaults: func(Env) []string {
			return []string{"/usr/lib/llvm-18", "/usr/lib/llvm-17", "/usr/local/opt/llvm", "/usr"}
		},
	},
	ToolchainSysroot: {
		env: []string{"LINUX_ARM64_SYSROOT"},
		defaults: func(Env) []string {
			return []string{"/usr/aarch64-linux-gnu"}
		},
	},
	ToolchainEmsdk: {
		env: []string{"EMSDK"},
		defaults: func(e Env) []string {
			var out []string
			if e.Home != "" {
				out = append(out, filepath.Join(e.Home, "emsdk"))
			}
			return append(out, "/opt/emsdk")
		},
	},
}

// locate returns the first existing candidate: explicit path, then
// environment variables, then conventional defaults.
func (e Env) locate(kind ToolchainKind, explicit string) (string, bool) {
	l, ok := locators[kind]
	if !ok {
		return "", false
	}
	candidates := make([]string, 0, 8)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	for _, name := range l.env {
		if v := e.Getenv(name); v != "" {
			candidates = append(candidates, v)
		}
	}
	candidates = append(candidates, l.defaults(e)...)
	for _, c := range candidates {
		if e.Exists(c) {
			return c, true
		}
	}
	return "", false
}

// kindsFor lists the toolchains one architecture of a platform needs.
func (e Env) kindsFor(p platform.Platform, arch platform.Arch) []ToolchainKind {
	traits := platform.MustLookup(p)
	switch traits.Family {
	case platform.FamilyApple:
		return []ToolchainKind{ToolchainXcode}
	case platform.FamilyAndroid:
		return []ToolchainKind{ToolchainNDK}
	case platform.FamilyWindows:
		return []ToolchainKind{ToolchainMSVC}
	case platform.FamilyLinux:
		if arch == platform.Arm64 && !hostIsArm64(e.HostArch) {
			return []ToolchainKind{ToolchainLLVM, ToolchainSysroot}
		}
		return []ToolchainKind{ToolchainLLVM}
	case platform.FamilyWasm:
		return []ToolchainKind{ToolchainEmsdk}
	default:
		return nil
	}
}

func hostIsArm64(goarch string) bool {
	return goarch == "arm64" || goarch == "aarch64"
}

// ndkHostTag is the prebuilt directory name inside the NDK.
func ndkHostTag(hostOS string) string {
	switch hostOS {
	case "darwin":
		return "darwin-x86_64"
	case "windows":
		return "windows-x86_64"
	default:
		return "linux-x86_64"
	}
}

// sdkRoot derives the SDK or sysroot directory from a toolchain path.
func sdkRoot(kind ToolchainKind, path string, traits platform.Traits, hostOS string) string {
	switch kind {
	case ToolchainXcode:
		stem := traits.SDK
		return filepath.Join(path, "Platforms", stem+".platform", "Developer", "SDKs", stem+".sdk")
	case ToolchainNDK:
		return filepath.Join(path, "toolchains", "llvm", "prebuilt", ndkHostTag(hostOS), "sysroot")
	default:
		return ""
	}
}
