package backend

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// Project describes a secondary CMake project built into static libraries.
type Project struct {
	Name string
	// Dir is the project directory containing CMakeLists.txt.
	Dir string
	// Libraries are the archive names the project produces, without prefix
	// or suffix ("webp" for libwebp.a and webp.lib).
	Libraries []string
	// Options are extra -D definitions, appended after the platform ones.
	Options []string
	// HeaderDirs are relative to Dir. Their *.h files are published under
	// include/<base name of the dir>/.
	HeaderDirs []string
	Platforms  []platform.Platform
}

// CMake configures a Project per arch with platform flags derived from the
// plan's toolchains, then builds it with `cmake --build`.
type CMake struct {
	runner  execx.Runner
	cmake   string
	jobs    int
	project Project
}

// NewCMake creates the secondary backend for project. jobs <= 0 leaves the
// generator's default parallelism.
func NewCMake(runner execx.Runner, cmake string, jobs int, project Project) *CMake {
	if cmake == "" {
		cmake = "cmake"
	}
	return &CMake{runner: runner, cmake: cmake, jobs: jobs, project: project}
}

func (c *CMake) Name() string { return "cmake:" + c.project.Name }

// Supports reports whether the project is configured for p. An empty
// platform list means every platform.
func (c *CMake) Supports(p platform.Platform) bool {
	if len(c.project.Platforms) == 0 {
		return true
	}
	for _, candidate := range c.project.Platforms {
		if candidate == p {
			return true
		}
	}
	return false
}

func (c *CMake) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: c.cmake, Purpose: "CMake configure and build"},
		{Name: "ninja", Purpose: "CMake generator"},
	}
}

func (c *CMake) Build(ctx context.Context, inv Invocation) (*Output, error) {
	buildDir := filepath.Join(inv.WorkDir, "cmake-"+c.project.Name)
	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		return nil, errors.FileSystemError("failed to create cmake build directory").
			WithCause(err).
			WithContext("path", buildDir).
			Build()
	}

	args := append([]string{"-S", c.project.Dir, "-B", buildDir}, c.configureArgs(inv)...)
	if err := run(ctx, c.runner, inv, "cmake configure", execx.Command{Name: c.cmake, Args: args, Dir: c.project.Dir}); err != nil {
		return nil, err
	}

	build := []string{"--build", buildDir, "--config", string(inv.Plan.Config)}
	if c.jobs > 0 {
		build = append(build, "--parallel", strconv.Itoa(c.jobs))
	}
	if err := run(ctx, c.runner, inv, "cmake build", execx.Command{Name: c.cmake, Args: build, Dir: c.project.Dir}); err != nil {
		return nil, err
	}

	headers, err := c.headers()
	if err != nil {
		return nil, err
	}
	return &Output{
		SearchDirs: []string{buildDir, filepath.Join(buildDir, string(inv.Plan.Config))},
		Produced:   append([]string(nil), c.project.Libraries...),
		Headers:    headers,
	}, nil
}

// configureArgs renders the cache definitions for one arch. Project options
// come last so they can override anything derived here.
func (c *CMake) configureArgs(inv Invocation) []string {
	plan := inv.Plan
	args := []string{
		"-G", "Ninja",
		"-DCMAKE_BUILD_TYPE=" + string(plan.Config),
		"-DBUILD_SHARED_LIBS=OFF",
	}
	tc := plan.Toolchains[inv.Arch]
	minOS := plan.MinOS
	if minOS == "" {
		minOS = plan.Traits.MinOS
	}

	switch plan.Traits.Family {
	case platform.FamilyApple:
		args = append(args, appleArgs(plan, inv.Arch, tc, minOS)...)
	case platform.FamilyAndroid:
		args = append(args,
			"-DCMAKE_SYSTEM_NAME=Android",
			"-DCMAKE_ANDROID_NDK="+tc.Path,
			"-DCMAKE_ANDROID_ARCH_ABI="+AndroidABI(inv.Arch),
			"-DCMAKE_ANDROID_API="+minOS,
			"-DCMAKE_ANDROID_STL_TYPE=c++_static",
		)
	case platform.FamilyWindows:
		args = append(args,
			"-DCMAKE_POLICY_DEFAULT_CMP0091=NEW",
			"-DCMAKE_MSVC_RUNTIME_LIBRARY="+MSVCRuntime(plan.CRT, plan.Config),
		)
	case platform.FamilyLinux:
		args = append(args, linuxArgs(plan, inv.Arch)...)
	case platform.FamilyWasm:
		if tc.Path != "" {
			args = append(args, "-DCMAKE_TOOLCHAIN_FILE="+
				filepath.Join(tc.Path, "upstream", "emscripten", "cmake", "Modules", "Platform", "Emscripten.cmake"))
		}
		args = append(args, "-DCMAKE_SYSTEM_NAME=Emscripten")
	}
	return append(args, c.project.Options...)
}

func appleArgs(plan *resolve.Plan, arch platform.Arch, tc resolve.Toolchain, minOS string) []string {
	var args []string
	switch plan.Platform {
	case platform.IOS, platform.IOSSimulator:
		args = append(args, "-DCMAKE_SYSTEM_NAME=iOS")
	case platform.VisionOS, platform.VisionOSSimulator:
		args = append(args, "-DCMAKE_SYSTEM_NAME=visionOS")
	}
	args = append(args,
		"-DCMAKE_OSX_DEPLOYMENT_TARGET="+minOS,
		"-DCMAKE_OSX_ARCHITECTURES="+string(arch),
	)
	sysroot := tc.SDKRoot
	if sysroot == "" {
		sysroot = plan.SDKRoot
	}
	if sysroot != "" {
		args = append(args, "-DCMAKE_OSX_SYSROOT="+sysroot)
	}
	if plan.Platform == platform.VisionOS || plan.Platform == platform.VisionOSSimulator {
		target := "-target " + string(arch) + "-apple-xros" + minOS
		if plan.Traits.Simulator {
			target += "-simulator"
		}
		args = append(args, "-DCMAKE_C_FLAGS="+target, "-DCMAKE_CXX_FLAGS="+target)
	}
	return args
}

// linuxArgs selects clang from the resolved LLVM and, for cross builds, the
// target triple and sysroot.
func linuxArgs(plan *resolve.Plan, arch platform.Arch) []string {
	var args []string
	tc := plan.Toolchains[arch]
	if tc.Kind == resolve.ToolchainLLVM && tc.Path != "" {
		args = append(args,
			"-DCMAKE_C_COMPILER="+filepath.Join(tc.Path, "bin", "clang"),
			"-DCMAKE_CXX_COMPILER="+filepath.Join(tc.Path, "bin", "clang++"),
		)
	}
	if tc.Sysroot == "" {
		return args
	}
	args = append(args,
		"-DCMAKE_SYSTEM_NAME=Linux",
		"-DCMAKE_SYSTEM_PROCESSOR="+linuxProcessor(arch),
		"-DCMAKE_SYSROOT="+tc.Sysroot,
	)
	if triple := plan.Triples[arch]; triple != "" {
		args = append(args,
			"-DCMAKE_C_COMPILER_TARGET="+triple,
			"-DCMAKE_CXX_COMPILER_TARGET="+triple,
		)
	}
	return args
}

func linuxProcessor(arch platform.Arch) string {
	switch arch {
	case platform.Arm64:
		return "aarch64"
	case platform.X64:
		return "x86_64"
	default:
		return string(arch)
	}
}

// AndroidABI maps an arch onto the NDK ABI name.
func AndroidABI(arch platform.Arch) string {
	switch arch {
	case platform.Arm64:
		return "arm64-v8a"
	case platform.Arm:
		return "armeabi-v7a"
	case platform.X64:
		return "x86_64"
	default:
		return string(arch)
	}
}

// MSVCRuntime is the CMAKE_MSVC_RUNTIME_LIBRARY value for a CRT and config.
func MSVCRuntime(crt platform.CRT, cfg platform.BuildType) string {
	name := "MultiThreaded"
	if cfg.IsDebug() {
		name += "Debug"
	}
	if crt == platform.CRTDynamic {
		name += "DLL"
	}
	return name
}

func (c *CMake) headers() ([]HeaderFile, error) {
	var out []HeaderFile
	for _, dir := range c.project.HeaderDirs {
		matches, err := filepath.Glob(filepath.Join(c.project.Dir, filepath.FromSlash(dir), "*.h"))
		if err != nil {
			return nil, errors.FileSystemError("failed to list project headers").WithCause(err).WithContext("path", dir).Build()
		}
		sort.Strings(matches)
		base := filepath.Base(filepath.FromSlash(dir))
		for _, m := range matches {
			out = append(out, HeaderFile{Src: m, Dest: filepath.Join(base, filepath.Base(m))})
		}
	}
	return out, nil
}
