package backend

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// GN is the primary backend: `gn gen` with the rendered args, then ninja.
type GN struct {
	runner execx.Runner
	gn     string
	ninja  string
	jobs   int
}

// NewGN creates the GN/Ninja backend. jobs <= 0 leaves ninja's default.
func NewGN(runner execx.Runner, gn, ninja string, jobs int) *GN {
	if gn == "" {
		gn = "gn"
	}
	if ninja == "" {
		ninja = "ninja"
	}
	return &GN{runner: runner, gn: gn, ninja: ninja, jobs: jobs}
}

func (g *GN) Name() string { return "gn" }

// Supports reports true for every platform; GN drives all primary builds.
func (g *GN) Supports(platform.Platform) bool { return true }

// RequiredTools omits a bare "gn" since the source tree may ship its own.
func (g *GN) RequiredTools() []ToolRequirement {
	reqs := []ToolRequirement{{Name: g.ninja, Purpose: "Ninja build"}}
	if g.gn != "gn" {
		reqs = append(reqs, ToolRequirement{Name: g.gn, Purpose: "GN meta build"})
	}
	return reqs
}

func (g *GN) Build(ctx context.Context, inv Invocation) (*Output, error) {
	if inv.Args == nil {
		return nil, errors.BuildFailed(string(inv.Arch), "no build configuration").Build()
	}
	outDir := filepath.Join(inv.WorkDir, "out")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, errors.FileSystemError("failed to create build directory").
			WithCause(err).
			WithContext("path", outDir).
			Build()
	}

	gen := execx.Command{
		Name: g.gnBinary(inv.SourceDir),
		Args: []string{"gen", outDir, "--args=" + inv.Args.Inline()},
		Dir:  inv.SourceDir,
	}
	if err := run(ctx, g.runner, inv, "gn gen", gen); err != nil {
		return nil, err
	}

	args := []string{"-C", outDir}
	if g.jobs > 0 {
		args = append(args, "-j", strconv.Itoa(g.jobs))
	}
	for _, lib := range inv.Plan.Required() {
		args = append(args, lib.Target)
	}
	build := execx.Command{Name: g.ninja, Args: args, Dir: inv.SourceDir}
	if err := run(ctx, g.runner, inv, "ninja", build); err != nil {
		return nil, err
	}

	return &Output{SearchDirs: []string{outDir, filepath.Join(outDir, "obj")}}, nil
}

// gnBinary prefers the gn shipped in the source tree when the configured
// name is the bare default.
func (g *GN) gnBinary(sourceDir string) string {
	if g.gn != "gn" {
		return g.gn
	}
	for _, name := range []string{"gn", "gn.exe"} {
		bundled := filepath.Join(sourceDir, "bin", name)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled
		}
	}
	return g.gn
}
