package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/execx"
	ferrors "git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/gnargs"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

type fakeRunner struct {
	mu       sync.Mutex
	commands []execx.Command
	exit     map[string]int
	onRun    func(execx.Command)
}

func (f *fakeRunner) Run(_ context.Context, cmd execx.Command) (*execx.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(cmd)
	}
	if code := f.exit[filepath.Base(cmd.Name)]; code != 0 {
		return &execx.Result{ExitCode: code, Stderr: "ninja: build stopped: subcommand failed.\n"}, nil
	}
	return &execx.Result{}, nil
}

func linuxPlan() *resolve.Plan {
	return &resolve.Plan{
		Platform:         platform.Linux,
		Traits:           platform.MustLookup(platform.Linux),
		Arches:           []platform.Arch{platform.X64},
		Config:           platform.Release,
		Variant:          platform.VariantGPU,
		EffectiveVariant: platform.VariantGPU,
		Libraries: []catalog.Library{
			{Name: "skia", Target: "skia"},
			{Name: "dawn_glfw_static", Target: "third_party/dawn:dawn_glfw_static"},
		},
		Excluded: []catalog.Exclusion{{Library: "dawn_glfw_static", Reason: "not built on linux"}},
	}
}

func argsConfig() *gnargs.Config {
	cfg := &gnargs.Config{}
	cfg.Set("is_official_build", gnargs.Bool(true))
	cfg.Set("target_cpu", gnargs.Str("x64"))
	return cfg
}

func TestGNBuildCommands(t *testing.T) {
	work := t.TempDir()
	src := t.TempDir()
	runner := &fakeRunner{}
	var log bytes.Buffer

	out, err := NewGN(runner, "", "", 4).Build(context.Background(), Invocation{
		Plan: linuxPlan(), Arch: platform.X64, Args: argsConfig(),
		SourceDir: src, WorkDir: work, Log: &log,
	})
	require.NoError(t, err)

	outDir := filepath.Join(work, "out")
	require.Len(t, runner.commands, 2)
	assert.Equal(t, "gn", runner.commands[0].Name)
	assert.Equal(t, []string{"gen", outDir, `--args=is_official_build=true target_cpu="x64"`}, runner.commands[0].Args)
	assert.Equal(t, src, runner.commands[0].Dir)
	assert.Equal(t, []string{"-C", outDir, "-j", "4", "skia"}, runner.commands[1].Args)
	assert.Equal(t, []string{outDir, filepath.Join(outDir, "obj")}, out.SearchDirs)
	assert.Contains(t, log.String(), "$ ninja -C")
}

func TestGNPrefersBundledBinary(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "gn"), []byte("#!/bin/sh\n"), 0o700))
	runner := &fakeRunner{}

	_, err := NewGN(runner, "gn", "ninja", 0).Build(context.Background(), Invocation{
		Plan: linuxPlan(), Arch: platform.X64, Args: argsConfig(), SourceDir: src, WorkDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "bin", "gn"), runner.commands[0].Name)
	assert.NotContains(t, runner.commands[1].Args, "-j")
}

func TestGNBuildFailure(t *testing.T) {
	runner := &fakeRunner{exit: map[string]int{"ninja": 1}}

	_, err := NewGN(runner, "", "", 0).Build(context.Background(), Invocation{
		Plan: linuxPlan(), Arch: platform.X64, Args: argsConfig(), SourceDir: t.TempDir(), WorkDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrBuildFailed)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	arch, _ := ce.Context().GetString("arch")
	output, _ := ce.Context().GetString("output")
	assert.Equal(t, "x64", arch)
	assert.Contains(t, output, "subcommand failed")
}

func TestCargoBuild(t *testing.T) {
	crateDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(crateDir, "include"), 0o750))
	work := t.TempDir()
	runner := &fakeRunner{onRun: func(cmd execx.Command) {
		if cmd.Name != "cargo" {
			return
		}
		dir := filepath.Join(work, "cargo", "x86_64-unknown-linux-gnu", "release")
		_ = os.MkdirAll(dir, 0o750)
		_ = os.WriteFile(filepath.Join(dir, "libswc_static.a"), []byte("archive"), 0o600)
	}}

	cargo := NewCargo(runner, Crate{Name: "swc", Dir: crateDir, Library: "swc", Header: "include/swc.h"})
	out, err := cargo.Build(context.Background(), Invocation{Plan: linuxPlan(), Arch: platform.X64, WorkDir: work})
	require.NoError(t, err)

	require.Len(t, runner.commands, 2)
	assert.Equal(t, []string{"target", "add", "x86_64-unknown-linux-gnu"}, runner.commands[0].Args)
	assert.Equal(t, []string{"build", "--target", "x86_64-unknown-linux-gnu", "--target-dir", filepath.Join(work, "cargo"), "--release"}, runner.commands[1].Args)

	assert.Equal(t, []string{"swc"}, out.Produced)
	data, err := os.ReadFile(filepath.Join(out.SearchDirs[0], "libswc.a"))
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
	require.Len(t, out.Headers, 1)
	assert.Equal(t, "swc.h", out.Headers[0].Dest)
}

func TestCargoMissingOutput(t *testing.T) {
	cargo := NewCargo(&fakeRunner{}, Crate{Name: "swc", Dir: t.TempDir(), Library: "swc"})
	_, err := cargo.Build(context.Background(), Invocation{Plan: linuxPlan(), Arch: platform.X64, WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrBuildFailed)
}

func TestCargoWindowsStaticCRT(t *testing.T) {
	plan := &resolve.Plan{
		Platform: platform.Windows, Traits: platform.MustLookup(platform.Windows),
		Arches: []platform.Arch{platform.X64}, CRT: platform.CRTStatic, Config: platform.Debug,
	}
	cargo := NewCargo(&fakeRunner{}, Crate{Name: "swc", Library: "swc"})
	env := cargo.env(Invocation{Plan: plan, Arch: platform.X64}, "x86_64-pc-windows-msvc")
	assert.Equal(t, []string{"RUSTFLAGS=-C target-feature=+crt-static"}, env)
}

func TestCargoAndroidLinker(t *testing.T) {
	plan := &resolve.Plan{
		Platform: platform.Android, Traits: platform.MustLookup(platform.Android),
		Arches: []platform.Arch{platform.Arm}, MinOS: "24",
		Toolchains: map[platform.Arch]resolve.Toolchain{
			platform.Arm: {Kind: resolve.ToolchainNDK, Path: "/ndk", SDKRoot: "/ndk/toolchains/llvm/prebuilt/linux-x86_64/sysroot"},
		},
	}
	env := NewCargo(&fakeRunner{}, Crate{Name: "swc", Library: "swc"}).env(Invocation{Plan: plan, Arch: platform.Arm}, "armv7-linux-androideabi")
	require.Len(t, env, 2)
	assert.Equal(t, "CARGO_TARGET_ARMV7_LINUX_ANDROIDEABI_LINKER=/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin/armv7a-linux-androideabi24-clang", env[0])
}

func TestCargoSupports(t *testing.T) {
	all := NewCargo(&fakeRunner{}, Crate{Name: "swc", Library: "swc"})
	assert.True(t, all.Supports(platform.Mac))
	assert.False(t, all.Supports(platform.VisionOS))

	limited := NewCargo(&fakeRunner{}, Crate{Name: "swc", Library: "swc", Platforms: []platform.Platform{platform.Mac, platform.Linux}})
	assert.True(t, limited.Supports(platform.Linux))
	assert.False(t, limited.Supports(platform.Windows))
	assert.Equal(t, "cargo:swc", limited.Name())
}

func webpProject(dir string) Project {
	return Project{
		Name:       "webp",
		Dir:        dir,
		Libraries:  []string{"webp", "sharpyuv"},
		Options:    []string{"-DWEBP_BUILD_CWEBP=OFF"},
		HeaderDirs: []string{"src/webp", "sharpyuv"},
	}
}

func TestCMakeBuild(t *testing.T) {
	src := t.TempDir()
	for _, h := range []string{"src/webp/decode.h", "src/webp/encode.h", "sharpyuv/sharpyuv.h", "sharpyuv/sharpyuv.c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(src, filepath.Dir(h)), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(src, h), []byte("//"), 0o600))
	}
	work := t.TempDir()
	runner := &fakeRunner{}
	plan := linuxPlan()
	plan.Toolchains = map[platform.Arch]resolve.Toolchain{platform.X64: {Kind: resolve.ToolchainLLVM, Path: "/usr/lib/llvm-18"}}

	out, err := NewCMake(runner, "", 4, webpProject(src)).
		Build(context.Background(), Invocation{Plan: plan, Arch: platform.X64, WorkDir: work})
	require.NoError(t, err)

	buildDir := filepath.Join(work, "cmake-webp")
	require.Len(t, runner.commands, 2)
	assert.Equal(t, "cmake", runner.commands[0].Name)
	assert.Equal(t, []string{
		"-S", src, "-B", buildDir,
		"-G", "Ninja", "-DCMAKE_BUILD_TYPE=Release", "-DBUILD_SHARED_LIBS=OFF",
		"-DCMAKE_C_COMPILER=/usr/lib/llvm-18/bin/clang",
		"-DCMAKE_CXX_COMPILER=/usr/lib/llvm-18/bin/clang++",
		"-DWEBP_BUILD_CWEBP=OFF",
	}, runner.commands[0].Args)
	assert.Equal(t, []string{"--build", buildDir, "--config", "Release", "--parallel", "4"}, runner.commands[1].Args)

	assert.Equal(t, []string{"webp", "sharpyuv"}, out.Produced)
	assert.Equal(t, buildDir, out.SearchDirs[0])
	dests := make([]string, len(out.Headers))
	for i, h := range out.Headers {
		dests[i] = filepath.ToSlash(h.Dest)
	}
	assert.Equal(t, []string{"webp/decode.h", "webp/encode.h", "sharpyuv/sharpyuv.h"}, dests)
}

func TestCMakeConfigureFailure(t *testing.T) {
	runner := &fakeRunner{exit: map[string]int{"cmake": 1}}
	_, err := NewCMake(runner, "", 0, webpProject(t.TempDir())).
		Build(context.Background(), Invocation{Plan: linuxPlan(), Arch: platform.X64, WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrBuildFailed)
	assert.Len(t, runner.commands, 1)
}

func TestCMakePlatformArgs(t *testing.T) {
	c := NewCMake(&fakeRunner{}, "", 0, Project{Name: "webp"})

	tests := []struct {
		name string
		plan *resolve.Plan
		arch platform.Arch
		want []string
	}{
		{
			name: "mac",
			plan: &resolve.Plan{Platform: platform.Mac, Traits: platform.MustLookup(platform.Mac), Config: platform.Release, MinOS: "11.0"},
			arch: platform.Arm64,
			want: []string{"-DCMAKE_OSX_DEPLOYMENT_TARGET=11.0", "-DCMAKE_OSX_ARCHITECTURES=arm64"},
		},
		{
			name: "ios simulator",
			plan: &resolve.Plan{
				Platform: platform.IOSSimulator, Traits: platform.MustLookup(platform.IOSSimulator), Config: platform.Release,
				Toolchains: map[platform.Arch]resolve.Toolchain{platform.X86_64: {Kind: resolve.ToolchainXcode, SDKRoot: "/sdk/iPhoneSimulator.sdk"}},
			},
			arch: platform.X86_64,
			want: []string{
				"-DCMAKE_SYSTEM_NAME=iOS", "-DCMAKE_OSX_DEPLOYMENT_TARGET=14.0",
				"-DCMAKE_OSX_ARCHITECTURES=x86_64", "-DCMAKE_OSX_SYSROOT=/sdk/iPhoneSimulator.sdk",
			},
		},
		{
			name: "visionos simulator",
			plan: &resolve.Plan{Platform: platform.VisionOSSimulator, Traits: platform.MustLookup(platform.VisionOSSimulator), Config: platform.Release},
			arch: platform.Arm64,
			want: []string{
				"-DCMAKE_SYSTEM_NAME=visionOS", "-DCMAKE_OSX_DEPLOYMENT_TARGET=1.0", "-DCMAKE_OSX_ARCHITECTURES=arm64",
				"-DCMAKE_C_FLAGS=-target arm64-apple-xros1.0-simulator", "-DCMAKE_CXX_FLAGS=-target arm64-apple-xros1.0-simulator",
			},
		},
		{
			name: "android",
			plan: &resolve.Plan{
				Platform: platform.Android, Traits: platform.MustLookup(platform.Android), Config: platform.Release, MinOS: "24",
				Toolchains: map[platform.Arch]resolve.Toolchain{platform.Arm: {Kind: resolve.ToolchainNDK, Path: "/ndk"}},
			},
			arch: platform.Arm,
			want: []string{
				"-DCMAKE_SYSTEM_NAME=Android", "-DCMAKE_ANDROID_NDK=/ndk", "-DCMAKE_ANDROID_ARCH_ABI=armeabi-v7a",
				"-DCMAKE_ANDROID_API=24", "-DCMAKE_ANDROID_STL_TYPE=c++_static",
			},
		},
		{
			name: "windows dynamic debug",
			plan: &resolve.Plan{Platform: platform.Windows, Traits: platform.MustLookup(platform.Windows), Config: platform.Debug, CRT: platform.CRTDynamic},
			arch: platform.X64,
			want: []string{"-DCMAKE_POLICY_DEFAULT_CMP0091=NEW", "-DCMAKE_MSVC_RUNTIME_LIBRARY=MultiThreadedDebugDLL"},
		},
		{
			name: "linux arm64 cross",
			plan: &resolve.Plan{
				Platform: platform.Linux, Traits: platform.MustLookup(platform.Linux), Config: platform.Release,
				Toolchains: map[platform.Arch]resolve.Toolchain{platform.Arm64: {Kind: resolve.ToolchainLLVM, Path: "/llvm", Sysroot: "/sysroot"}},
				Triples:    map[platform.Arch]string{platform.Arm64: "aarch64-unknown-linux-gnu"},
			},
			arch: platform.Arm64,
			want: []string{
				"-DCMAKE_C_COMPILER=/llvm/bin/clang", "-DCMAKE_CXX_COMPILER=/llvm/bin/clang++",
				"-DCMAKE_SYSTEM_NAME=Linux", "-DCMAKE_SYSTEM_PROCESSOR=aarch64", "-DCMAKE_SYSROOT=/sysroot",
				"-DCMAKE_C_COMPILER_TARGET=aarch64-unknown-linux-gnu", "-DCMAKE_CXX_COMPILER_TARGET=aarch64-unknown-linux-gnu",
			},
		},
		{
			name: "wasm",
			plan: &resolve.Plan{
				Platform: platform.Wasm, Traits: platform.MustLookup(platform.Wasm), Config: platform.Release,
				Toolchains: map[platform.Arch]resolve.Toolchain{platform.Wasm32: {Kind: resolve.ToolchainEmsdk, Path: "/emsdk"}},
			},
			arch: platform.Wasm32,
			want: []string{
				"-DCMAKE_TOOLCHAIN_FILE=/emsdk/upstream/emscripten/cmake/Modules/Platform/Emscripten.cmake",
				"-DCMAKE_SYSTEM_NAME=Emscripten",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := c.configureArgs(Invocation{Plan: tt.plan, Arch: tt.arch})
			require.Greater(t, len(args), 4)
			assert.Equal(t, []string{"-G", "Ninja", "-DCMAKE_BUILD_TYPE=" + string(tt.plan.Config), "-DBUILD_SHARED_LIBS=OFF"}, args[:4])
			assert.Equal(t, tt.want, args[4:])
		})
	}
}

func TestCMakeSupportsAndTools(t *testing.T) {
	all := NewCMake(&fakeRunner{}, "", 0, Project{Name: "webp"})
	assert.True(t, all.Supports(platform.VisionOS))
	assert.Equal(t, "cmake:webp", all.Name())

	limited := NewCMake(&fakeRunner{}, "/opt/cmake/bin/cmake", 0, Project{Name: "draco", Platforms: []platform.Platform{platform.Android}})
	assert.True(t, limited.Supports(platform.Android))
	assert.False(t, limited.Supports(platform.Mac))

	err := CheckTools(fakeLookPath{"ninja": true}, limited)
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	missing, _ := ce.Context().GetString("missing")
	assert.Contains(t, missing, "/opt/cmake/bin/cmake")
}

type fakeLookPath map[string]bool

func (f fakeLookPath) LookPath(name string) (string, error) {
	if f[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func TestCheckTools(t *testing.T) {
	gn := NewGN(&fakeRunner{}, "", "", 0)
	require.NoError(t, CheckTools(fakeLookPath{"gn": true, "ninja": true}, gn))

	err := CheckTools(fakeLookPath{"gn": true}, gn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrMissingToolchain)
	ce, _ := ferrors.AsClassified(err)
	missing, _ := ce.Context().GetString("missing")
	assert.True(t, strings.Contains(missing, "ninja"))
}
