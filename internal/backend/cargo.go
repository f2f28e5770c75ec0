package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// Crate describes a secondary Rust crate built into a static library.
type Crate struct {
	Name string
	// Dir is the crate directory containing Cargo.toml.
	Dir string
	// Library is the distributed library name; CrateLibrary is what cargo emits.
	Library      string
	CrateLibrary string
	// Header is relative to Dir and is published under include/.
	Header    string
	Platforms []platform.Platform
}

// Cargo builds a Crate with rustup and cargo.
type Cargo struct {
	runner execx.Runner
	crate  Crate
}

// NewCargo creates the secondary backend for crate.
func NewCargo(runner execx.Runner, crate Crate) *Cargo {
	if crate.CrateLibrary == "" {
		crate.CrateLibrary = crate.Library + "_static"
	}
	return &Cargo{runner: runner, crate: crate}
}

func (c *Cargo) Name() string { return "cargo:" + c.crate.Name }

// Supports reports whether the crate is configured for p. An empty platform
// list means every platform with a Rust target.
func (c *Cargo) Supports(p platform.Platform) bool {
	if len(c.crate.Platforms) == 0 {
		traits, err := platform.Lookup(p)
		if err != nil {
			return false
		}
		for _, a := range traits.Arches {
			if RustTriple(p, a) != "" {
				return true
			}
		}
		return false
	}
	for _, candidate := range c.crate.Platforms {
		if candidate == p {
			return true
		}
	}
	return false
}

func (c *Cargo) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: "cargo", Purpose: "Rust package manager"},
		{Name: "rustup", Purpose: "Rust target installer"},
	}
}

func (c *Cargo) Build(ctx context.Context, inv Invocation) (*Output, error) {
	arch := string(inv.Arch)
	triple := RustTriple(inv.Plan.Platform, inv.Arch)
	if triple == "" {
		return nil, errors.BuildFailed(arch, "no Rust target for "+string(inv.Plan.Platform)+"/"+arch).Build()
	}

	targetDir := filepath.Join(inv.WorkDir, "cargo")
	if err := run(ctx, c.runner, inv, "rustup target add",
		execx.Command{Name: "rustup", Args: []string{"target", "add", triple}, Dir: c.crate.Dir}); err != nil {
		return nil, err
	}

	args := []string{"build", "--target", triple, "--target-dir", targetDir}
	profile := "debug"
	if !inv.Plan.Config.IsDebug() {
		args = append(args, "--release")
		profile = "release"
	}
	if _, err := os.Stat(filepath.Join(c.crate.Dir, "Cargo.lock")); err == nil {
		args = append(args, "--locked")
	}
	build := execx.Command{Name: "cargo", Args: args, Dir: c.crate.Dir, Env: c.env(inv, triple)}
	if err := run(ctx, c.runner, inv, "cargo build", build); err != nil {
		return nil, err
	}

	traits := inv.Plan.Traits
	built := filepath.Join(targetDir, triple, profile, traits.LibFile(c.crate.CrateLibrary))
	outDir := filepath.Join(inv.WorkDir, "out-"+c.crate.Name)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, errors.FileSystemError("failed to create crate output directory").WithCause(err).WithContext("path", outDir).Build()
	}
	if err := copyFile(built, filepath.Join(outDir, traits.LibFile(c.crate.Library))); err != nil {
		return nil, errors.BuildFailed(arch, "cargo output missing").
			WithCause(err).
			WithContext("path", built).
			Build()
	}

	out := &Output{SearchDirs: []string{outDir}, Produced: []string{c.crate.Library}}
	if c.crate.Header != "" {
		out.Headers = append(out.Headers, HeaderFile{
			Src:  filepath.Join(c.crate.Dir, c.crate.Header),
			Dest: filepath.Base(c.crate.Header),
		})
	}
	return out, nil
}

// env wires the NDK linker for Android and static CRT linkage for Windows.
func (c *Cargo) env(inv Invocation, triple string) []string {
	var env []string
	switch inv.Plan.Traits.Family {
	case platform.FamilyAndroid:
		tc := inv.Plan.Toolchains[inv.Arch]
		if tc.SDKRoot == "" {
			break
		}
		bin := filepath.Join(filepath.Dir(tc.SDKRoot), "bin")
		clang := filepath.Join(bin, clangTriple(triple)+inv.Plan.MinOS+"-clang")
		env = append(env,
			"CARGO_TARGET_"+strings.ToUpper(strings.ReplaceAll(triple, "-", "_"))+"_LINKER="+clang,
			"AR="+filepath.Join(bin, "llvm-ar"))
	case platform.FamilyWindows:
		if inv.Plan.CRT == platform.CRTStatic {
			env = append(env, "RUSTFLAGS=-C target-feature=+crt-static")
		}
	case platform.FamilyApple:
		if inv.Plan.MinOS != "" && inv.Plan.Platform == platform.Mac {
			env = append(env, "MACOSX_DEPLOYMENT_TARGET="+inv.Plan.MinOS)
		}
	}
	return env
}

// clangTriple maps a Rust Android triple onto the NDK clang wrapper prefix.
func clangTriple(rust string) string {
	if rust == "armv7-linux-androideabi" {
		return "armv7a-linux-androideabi"
	}
	return rust
}

// RustTriple returns the Rust target for a platform and arch, or "".
func RustTriple(p platform.Platform, arch platform.Arch) string {
	switch p {
	case platform.Mac:
		switch arch {
		case platform.Arm64:
			return "aarch64-apple-darwin"
		case platform.X86_64:
			return "x86_64-apple-darwin"
		}
	case platform.IOS:
		if arch == platform.Arm64 {
			return "aarch64-apple-ios"
		}
	case platform.IOSSimulator:
		switch arch {
		case platform.Arm64:
			return "aarch64-apple-ios-sim"
		case platform.X86_64:
			return "x86_64-apple-ios"
		}
	case platform.Android:
		switch arch {
		case platform.Arm64:
			return "aarch64-linux-android"
		case platform.Arm:
			return "armv7-linux-androideabi"
		case platform.X64:
			return "x86_64-linux-android"
		case platform.X86:
			return "i686-linux-android"
		}
	case platform.Windows:
		switch arch {
		case platform.X64:
			return "x86_64-pc-windows-msvc"
		case platform.Arm64:
			return "aarch64-pc-windows-msvc"
		}
	case platform.Linux:
		switch arch {
		case platform.X64:
			return "x86_64-unknown-linux-gnu"
		case platform.Arm64:
			return "aarch64-unknown-linux-gnu"
		}
	case platform.Wasm:
		return "wasm32-unknown-emscripten"
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
