// Package backend wraps the external build systems libforge drives: GN and
// Ninja for the primary source tree and Cargo for secondary crates.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/gnargs"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// Invocation is everything a backend needs to build one arch of a plan.
type Invocation struct {
	Plan *resolve.Plan
	Arch platform.Arch
	Args *gnargs.Config
	// SourceDir is the synchronized primary source root.
	SourceDir string
	// WorkDir is the arch-private scratch directory. Backends write nowhere else.
	WorkDir string
	// Log receives the full tool output.
	Log io.Writer
}

// HeaderFile is a header a backend produced or owns, relative to include/.
type HeaderFile struct {
	Src  string
	Dest string
}

// Output tells the executor where to look for artifacts.
type Output struct {
	// SearchDirs are scanned first, in order, before walking the work dir.
	SearchDirs []string
	// Produced names libraries this backend adds beyond the plan's manifest.
	Produced []string
	Headers  []HeaderFile
}

// Backend is one external build system.
type Backend interface {
	Name() string
	Supports(p platform.Platform) bool
	Build(ctx context.Context, inv Invocation) (*Output, error)
}

// ToolRequirement describes an external tool a backend needs.
type ToolRequirement struct {
	Name    string
	Purpose string
}

// ToolChecker is implemented by backends that can verify their tools up front.
type ToolChecker interface {
	RequiredTools() []ToolRequirement
}

// CheckTools verifies every requirement of b resolves on PATH.
func CheckTools(lp execx.LookPather, b Backend) error {
	checker, ok := b.(ToolChecker)
	if !ok {
		return nil
	}
	var missing []string
	for _, req := range checker.RequiredTools() {
		if _, err := lp.LookPath(req.Name); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.MissingToolchain(b.Name(), "").
		WithContext("missing", strings.Join(missing, ", ")).
		Build()
}

// tailLines is how much tool output a BuildFailed error carries.
const tailLines = 30

// run executes one build step and converts failures into BuildFailed errors.
func run(ctx context.Context, runner execx.Runner, inv Invocation, step string, cmd execx.Command) error {
	cmd.Log = inv.Log
	if inv.Log != nil {
		fmt.Fprintf(inv.Log, "$ %s\n", cmd.String())
	}
	slog.DebugContext(ctx, "Running build step", logfields.Stage(step), logfields.Command(cmd.String()), logfields.Arch(string(inv.Arch)))

	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return errors.BuildFailed(string(inv.Arch), step+" could not run").
			WithCause(err).
			WithContext("command", cmd.String()).
			Build()
	}
	if !res.Success() {
		return errors.BuildFailed(string(inv.Arch), step+" exited with "+strconv.Itoa(res.ExitCode)).
			WithContext("command", cmd.String()).
			WithContext("exit_code", res.ExitCode).
			WithContext("output", res.Tail(tailLines)).
			Build()
	}
	return nil
}
