package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/libforge/internal/backend"
	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
	"git.home.luguber.info/inful/libforge/internal/synth"
	"git.home.luguber.info/inful/libforge/internal/workspace"
)

// LogFileName is the per-arch tool output log inside the scratch directory.
const LogFileName = "build.log"

// ArtifactSet is what one arch task produced.
type ArtifactSet struct {
	PlanKey string
	Arch    platform.Arch
	// Libraries maps library name to the absolute path of its archive.
	Libraries map[string]string
	// Missing lists excluded libraries that were not produced.
	Missing []catalog.Exclusion
	Headers []backend.HeaderFile
}

// ArchResult is the outcome of one arch task. Exactly one of Artifacts and
// Err is set.
type ArchResult struct {
	Arch      platform.Arch
	WorkDir   string
	Artifacts *ArtifactSet
	Err       error
	Duration  time.Duration
}

// Executor fans a plan out over its arches.
type Executor struct {
	primary   backend.Backend
	secondary []backend.Backend
	layout    *workspace.Layout
	jobs      int
}

// Option configures an Executor.
type Option func(*Executor)

// WithSecondary adds backends that run after the primary one on platforms
// they support.
func WithSecondary(b ...backend.Backend) Option {
	return func(e *Executor) { e.secondary = append(e.secondary, b...) }
}

// WithJobs bounds how many arch tasks of one plan run at once.
func WithJobs(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.jobs = n
		}
	}
}

// New creates an executor writing scratch output under layout.
func New(primary backend.Backend, layout *workspace.Layout, opts ...Option) *Executor {
	e := &Executor{primary: primary, layout: layout, jobs: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute builds every arch of plan and returns one result per arch in plan
// order. It returns only after every task has finished.
func (e *Executor) Execute(ctx context.Context, plan *resolve.Plan, cfg *synth.Result, srcDir string) []ArchResult {
	results := make([]ArchResult, len(plan.Arches))
	g := new(errgroup.Group)
	g.SetLimit(e.jobs)
	for i, arch := range plan.Arches {
		g.Go(func() error {
			results[i] = e.buildArch(ctx, plan, cfg, srcDir, arch)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) buildArch(ctx context.Context, plan *resolve.Plan, cfg *synth.Result, srcDir string, arch platform.Arch) ArchResult {
	ctx = observability.WithArch(ctx, string(arch))
	start := time.Now()
	res := ArchResult{Arch: arch, WorkDir: e.workDir(plan, arch)}

	set, err := e.run(ctx, plan, cfg, srcDir, arch, res.WorkDir)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		observability.ErrorContext(ctx, "Arch build failed",
			logfields.Error(err), logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return res
	}
	res.Artifacts = set
	observability.InfoContext(ctx, "Arch build completed",
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res
}

// workDir includes the plan name so variants and CRTs of one platform never
// share scratch space.
func (e *Executor) workDir(plan *resolve.Plan, arch platform.Arch) string {
	return e.layout.ArchDir(plan.Name(), string(plan.Config), string(arch))
}

func (e *Executor) run(ctx context.Context, plan *resolve.Plan, cfg *synth.Result, srcDir string, arch platform.Arch, workDir string) (*ArtifactSet, error) {
	if archErr := plan.ArchError(arch); archErr != nil {
		return nil, errors.BuildFailed(string(arch), "missing toolchain").WithCause(archErr).Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.BuildFailed(string(arch), "cancelled before start").WithCause(err).Build()
	}

	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, errors.FileSystemError("failed to create arch directory").
			WithCause(err).
			WithContext("path", workDir).
			Build()
	}
	logFile, err := os.Create(filepath.Join(workDir, LogFileName))
	if err != nil {
		return nil, errors.FileSystemError("failed to create build log").WithCause(err).Build()
	}
	defer func() { _ = logFile.Close() }()

	inv := backend.Invocation{
		Plan:      plan,
		Arch:      arch,
		SourceDir: srcDir,
		WorkDir:   workDir,
		Log:       logFile,
	}
	if cfg != nil {
		inv.Args = cfg.ForArch(arch)
	}

	var outputs []*backend.Output
	for _, b := range e.backendsFor(plan.Platform) {
		observability.DebugContext(ctx, "Running backend", logfields.Name(b.Name()))
		out, err := b.Build(ctx, inv)
		if err != nil {
			return nil, err
		}
		if out != nil {
			outputs = append(outputs, out)
		}
	}

	return scan(ctx, plan, arch, workDir, outputs)
}

func (e *Executor) backendsFor(p platform.Platform) []backend.Backend {
	list := []backend.Backend{e.primary}
	for _, b := range e.secondary {
		if b.Supports(p) {
			list = append(list, b)
		}
	}
	return list
}

// scan locates every expected library. Required libraries that are absent
// fail the arch; excluded ones are recorded as omissions.
func scan(ctx context.Context, plan *resolve.Plan, arch platform.Arch, workDir string, outputs []*backend.Output) (*ArtifactSet, error) {
	set := &ArtifactSet{
		PlanKey:   plan.Key(),
		Arch:      arch,
		Libraries: make(map[string]string),
	}

	var searchDirs []string
	var produced []string
	for _, out := range outputs {
		searchDirs = append(searchDirs, out.SearchDirs...)
		produced = append(produced, out.Produced...)
		set.Headers = append(set.Headers, out.Headers...)
	}

	names := make([]string, 0, len(plan.Libraries)+len(produced))
	for _, lib := range plan.Libraries {
		names = append(names, lib.Name)
	}
	names = append(names, produced...)

	var missing []string
	for _, name := range names {
		if _, done := set.Libraries[name]; done {
			continue
		}
		path, found := locate(plan.LibFile(name), searchDirs, workDir)
		switch {
		case found:
			set.Libraries[name] = path
		case plan.IsExcluded(name):
			set.Missing = append(set.Missing, exclusionFor(plan, name))
			observability.InfoContext(ctx, "Library omitted on this platform", logfields.Library(name))
		default:
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, errors.ManifestMismatch(missing[0]).
			WithContext("arch", string(arch)).
			WithContext("missing", fmt.Sprint(missing)).
			Build()
	}
	return set, nil
}

func exclusionFor(plan *resolve.Plan, name string) catalog.Exclusion {
	for _, ex := range plan.Excluded {
		if ex.Library == name {
			return ex
		}
	}
	return catalog.Exclusion{Library: name}
}

// locate checks the candidate directories first, then walks root for the
// exact file name. The walk is lexical so the first match is stable.
func locate(file string, dirs []string, root string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	var found string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == file {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
