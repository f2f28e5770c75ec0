package build

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/libforge/internal/assemble"
	"git.home.luguber.info/inful/libforge/internal/backend"
	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/config"
	"git.home.luguber.info/inful/libforge/internal/eventstore"
	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/executor"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/git"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/metrics"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/patch"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
	"git.home.luguber.info/inful/libforge/internal/retry"
	"git.home.luguber.info/inful/libforge/internal/synth"
	"git.home.luguber.info/inful/libforge/internal/version"
	"git.home.luguber.info/inful/libforge/internal/workspace"
)

// Syncer brings the source tree to its pinned revision.
type Syncer interface {
	Sync(ctx context.Context, spec git.SourceSpec) (*git.SyncResult, error)
}

// Patcher applies patch records below a source root.
type Patcher interface {
	Apply(ctx context.Context, root string, records []patch.Record) patch.Report
	// Verify reports which records are present without modifying the tree.
	Verify(ctx context.Context, root string, records []patch.Record) patch.Report
}

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	cfg      *config.Config
	layout   *workspace.Layout
	catalog  *catalog.Catalog
	resolver *resolve.Resolver
	synth    *synth.Synthesizer
	syncer   Syncer
	patcher  Patcher
	runner   execx.Runner
	lookPath execx.LookPather

	primary      backend.Backend
	secondary    []backend.Backend
	secondarySet bool
	merger       assemble.Merger

	recorder metrics.Recorder
	ledger   eventstore.Store
	newRunID func() string
}

// Option configures a DefaultService.
type Option func(*DefaultService)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *DefaultService) { s.recorder = r }
}

// WithLedger records run events in store.
func WithLedger(store eventstore.Store) Option {
	return func(s *DefaultService) { s.ledger = store }
}

// WithResolver replaces the toolchain-probing resolver (for testing).
func WithResolver(r *resolve.Resolver) Option {
	return func(s *DefaultService) { s.resolver = r }
}

// WithSyncer replaces the go-git syncer.
func WithSyncer(sy Syncer) Option {
	return func(s *DefaultService) { s.syncer = sy }
}

// WithPatcher replaces the git apply patch engine.
func WithPatcher(p Patcher) Option {
	return func(s *DefaultService) { s.patcher = p }
}

// WithRunner replaces the process runner used by default components.
func WithRunner(r execx.Runner) Option {
	return func(s *DefaultService) { s.runner = r }
}

// WithLookPath replaces tool lookup on PATH.
func WithLookPath(lp execx.LookPather) Option {
	return func(s *DefaultService) { s.lookPath = lp }
}

// WithBackends replaces the primary and secondary backends.
func WithBackends(primary backend.Backend, secondary ...backend.Backend) Option {
	return func(s *DefaultService) {
		s.primary = primary
		s.secondary = secondary
		s.secondarySet = true
	}
}

// WithMerger replaces the lipo merger.
func WithMerger(m assemble.Merger) Option {
	return func(s *DefaultService) { s.merger = m }
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(fn func() string) Option {
	return func(s *DefaultService) { s.newRunID = fn }
}

// NewService wires the default pipeline for cfg. Options override single
// components; everything left unset is built from cfg.
func NewService(cfg *config.Config, opts ...Option) *DefaultService {
	s := &DefaultService{
		cfg:      cfg,
		layout:   workspace.NewLayout(cfg.Build.Root, cfg.Build.Output),
		catalog:  catalog.Default(),
		recorder: metrics.NoopRecorder{},
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.runner == nil {
		s.runner = execx.NewOSRunner()
	}
	if s.lookPath == nil {
		if lp, ok := s.runner.(execx.LookPather); ok {
			s.lookPath = lp
		} else {
			s.lookPath = execx.NewOSRunner()
		}
	}
	if s.resolver == nil {
		s.resolver = resolve.NewResolver(s.catalog, resolve.OSEnv())
	}
	s.synth = synth.NewSynthesizer(cfg.Build.GNArgs)
	if s.syncer == nil {
		s.syncer = git.NewSyncer(s.layout.SourceDir(), retry.FromConfig(cfg.Retry))
	}
	if s.patcher == nil {
		s.patcher = patch.NewEngine(patch.NewGitApplier(s.runner))
	}
	if s.primary == nil {
		s.primary = backend.NewGN(s.runner, cfg.Build.GN, cfg.Build.Ninja, cfg.Build.Jobs)
	}
	if !s.secondarySet {
		s.secondary = append(s.cargoBackends(), s.cmakeBackends()...)
	}
	if s.merger == nil {
		s.merger = assemble.NewLipo(s.runner, cfg.Build.Lipo)
	}
	return s
}

func (s *DefaultService) cargoBackends() []backend.Backend {
	var out []backend.Backend
	srcDir := s.layout.SourcePath(s.cfg.Source.Name)
	for _, sc := range s.cfg.Secondary {
		dir := sc.CrateDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(srcDir, dir)
		}
		out = append(out, backend.NewCargo(s.runner, backend.Crate{
			Name:         sc.Name,
			Dir:          dir,
			Library:      sc.Library,
			CrateLibrary: sc.CrateLibrary,
			Header:       sc.Header,
			Platforms:    parsePlatforms(sc.Platforms),
		}))
	}
	return out
}

func (s *DefaultService) cmakeBackends() []backend.Backend {
	var out []backend.Backend
	srcDir := s.layout.SourcePath(s.cfg.Source.Name)
	for _, pc := range s.cfg.CMake {
		dir := pc.SourceDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(srcDir, dir)
		}
		out = append(out, backend.NewCMake(s.runner, s.cfg.Build.CMake, s.cfg.Build.Jobs, backend.Project{
			Name:       pc.Name,
			Dir:        dir,
			Libraries:  pc.Libraries,
			Options:    pc.Options,
			HeaderDirs: pc.HeaderDirs,
			Platforms:  parsePlatforms(pc.Platforms),
		}))
	}
	return out
}

func parsePlatforms(ids []string) []platform.Platform {
	var plats []platform.Platform
	for _, id := range ids {
		if p, err := platform.Parse(id); err == nil {
			plats = append(plats, p)
		}
	}
	return plats
}

// Run executes the complete pipeline.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := s.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	result := &Result{RunID: runID, StartTime: start, BundleErrors: map[string]error{}}

	previews, unresolved, err := s.resolveAll(ctx, req)
	if err != nil {
		s.finish(ctx, result, StatusFailed)
		return result, err
	}
	s.emitRunStarted(ctx, runID, "build", previews)

	srcDir := s.layout.SourcePath(s.cfg.Source.Name)
	var patches patch.Report
	if !req.SkipSync {
		outcome, err := s.syncAndPatch(ctx, runID, req)
		result.Sync = outcome
		if err != nil {
			s.finish(ctx, result, statusFor(ctx))
			return result, err
		}
		patches = outcome.Patches
	} else {
		patches, err = s.verifyPatches(ctx, srcDir)
		if err != nil {
			s.finish(ctx, result, StatusFailed)
			return result, err
		}
	}

	if err := s.checkTools(previews); err != nil {
		s.finish(ctx, result, StatusFailed)
		return result, err
	}

	if req.Clean {
		if err := s.layout.CleanTmp(); err != nil {
			s.finish(ctx, result, StatusFailed)
			return result, errors.FileSystemError("failed to clean scratch directories").WithCause(err).Build()
		}
	}
	if err := s.layout.Create(); err != nil {
		s.finish(ctx, result, StatusFailed)
		return result, errors.FileSystemError("failed to create workspace").WithCause(err).Build()
	}

	asm := assemble.New(s.cfg.Product, s.layout, s.catalog, s.merger,
		assemble.WithRunner(s.runner),
		assemble.WithHeaderRules(s.headerRules()...),
		assemble.WithInputs(s.manifestInputs(result.Sync, patches, srcDir)),
	)
	exec := executor.New(s.primary, s.layout,
		executor.WithSecondary(s.secondary...),
		executor.WithJobs(s.cfg.Build.Jobs),
	)

	stageCtx, stage := observability.StartStage(ctx, "build")
	stageStart := time.Now()
	built := make([]PlanResult, len(previews))
	var g errgroup.Group
	for i, pv := range previews {
		g.Go(func() error {
			built[i] = s.runPlan(stageCtx, runID, exec, asm, pv, srcDir)
			return nil
		})
	}
	_ = g.Wait()
	s.recorder.ObserveStageDuration("build", time.Since(stageStart))
	result.Plans = append(unresolved, built...)
	succeeded, failed := result.Counts()
	if failed > 0 {
		s.recorder.IncStageResult("build", metrics.ResultWarning)
	} else {
		s.recorder.IncStageResult("build", metrics.ResultSuccess)
	}
	stage.End(nil)

	s.runBundles(ctx, asm, result)

	status := StatusSuccess
	if failed > 0 || len(result.BundleErrors) > 0 {
		status = StatusFailed
	}
	if ctx.Err() != nil {
		status = StatusCancelled
	}
	s.finish(ctx, result, status)
	observability.InfoContext(ctx, "Run finished",
		logfields.Outcome(string(status)),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))

	if fp := result.FirstFailure(); fp != nil {
		return result, fp.Err
	}
	if len(result.BundleErrors) > 0 {
		names := make([]string, 0, len(result.BundleErrors))
		for name := range result.BundleErrors {
			names = append(names, name)
		}
		sort.Strings(names)
		return result, result.BundleErrors[names[0]]
	}
	return result, nil
}

// Plan resolves and synthesizes every requested plan. Plans whose toolchains
// are entirely missing are reported through the returned error after the
// resolvable previews.
func (s *DefaultService) Plan(ctx context.Context, req Request) ([]Preview, error) {
	previews, unresolved, err := s.resolveAll(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		return previews, unresolved[0].Err
	}
	return previews, nil
}

// Sync synchronizes and patches the source tree.
func (s *DefaultService) Sync(ctx context.Context, req Request) (*SyncOutcome, error) {
	runID := s.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	start := time.Now()
	s.emitRunStarted(ctx, runID, "sync", nil)

	outcome, err := s.syncAndPatch(ctx, runID, req)
	status := eventstore.RunStatusSucceeded
	if err != nil {
		status = eventstore.RunStatusFailed
	}
	s.emit(ctx, eventstore.RunCompleted{Run: eventstore.Run{ID: runID}, Status: status, DurationMS: eventstore.Millis(time.Since(start))})
	return outcome, err
}

func (s *DefaultService) runPlan(ctx context.Context, runID string, exec *executor.Executor, asm *assemble.Assembler, pv Preview, srcDir string) PlanResult {
	plan := pv.Plan
	ctx = observability.WithPlan(ctx, plan.Key())
	observability.InfoContext(ctx, "Building plan", logfields.Platform(string(plan.Platform)), logfields.Variant(string(plan.EffectiveVariant)))

	archResults := exec.Execute(ctx, plan, pv.Config, srcDir)
	for _, ar := range archResults {
		s.recorder.ObserveArchBuild(string(plan.Platform), string(ar.Arch), ar.Duration, ar.Err == nil)
		msg := ""
		if ar.Err != nil {
			msg = ar.Err.Error()
		}
		s.emit(ctx, eventstore.ArchBuilt{
			Run:        eventstore.Run{ID: runID},
			Plan:       plan.Key(),
			Arch:       string(ar.Arch),
			Success:    ar.Err == nil,
			Error:      msg,
			DurationMS: eventstore.Millis(ar.Duration),
		})
	}

	pr := PlanResult{Name: plan.Key(), Plan: plan, Arches: archResults, Status: StatusSuccess}
	entry, err := asm.Assemble(ctx, plan, archResults, srcDir, pv.Config.Hash())
	if err != nil {
		pr.Err = err
		pr.Status = statusFor(ctx)
		observability.ErrorContext(ctx, "Plan failed", logfields.Error(err))
	} else {
		pr.Entry = entry
	}

	s.recorder.IncPlanOutcome(string(plan.Platform), planOutcome(pr.Status))
	finished := eventstore.PlanFinished{Run: eventstore.Run{ID: runID}, Plan: pr.Name, Status: string(pr.Status)}
	if pr.Err != nil {
		finished.Reason = pr.Err.Error()
	}
	if pr.Entry != nil {
		finished.Entry = pr.Entry.Dir
	}
	s.emit(ctx, finished)
	return pr
}

func (s *DefaultService) runBundles(ctx context.Context, asm *assemble.Assembler, result *Result) {
	var entries []*assemble.Entry
	requested := make(map[platform.Platform]bool)
	for _, p := range result.Plans {
		if p.Plan != nil {
			requested[p.Plan.Platform] = true
		} else if plat, err := platform.Parse(p.Name); err == nil {
			requested[plat] = true
		}
		if p.Entry != nil {
			entries = append(entries, p.Entry)
		}
	}

	for _, bc := range s.cfg.Bundles {
		spec := assemble.BundleSpec{Name: bc.Name, Kind: string(bc.Kind)}
		involved := false
		for _, id := range bc.Platforms {
			if p, err := platform.Parse(id); err == nil {
				spec.Platforms = append(spec.Platforms, p)
				involved = involved || requested[p]
			}
		}
		if !involved {
			continue
		}
		bctx := observability.WithStage(ctx, "bundle")
		b, err := asm.Bundle(bctx, spec, entries)
		if err != nil {
			result.BundleErrors[bc.Name] = err
			observability.ErrorContext(bctx, "Bundle failed", logfields.Name(bc.Name), logfields.Error(err))
			continue
		}
		result.Bundles = append(result.Bundles, b)
	}
}

func (s *DefaultService) finish(ctx context.Context, result *Result, status Status) {
	result.Status = status
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.recorder.ObserveRunDuration(result.Duration)

	succeeded, failed := result.Counts()
	ledgerStatus := eventstore.RunStatusSucceeded
	if status != StatusSuccess {
		ledgerStatus = eventstore.RunStatusFailed
	}
	s.emit(ctx, eventstore.RunCompleted{
		Run:        eventstore.Run{ID: result.RunID},
		Status:     ledgerStatus,
		DurationMS: eventstore.Millis(result.Duration),
		Succeeded:  succeeded,
		Failed:     failed,
	})
}

func (s *DefaultService) emitRunStarted(ctx context.Context, runID, command string, previews []Preview) {
	e := eventstore.RunStarted{
		Run:      eventstore.Run{ID: runID},
		Command:  command,
		Revision: s.cfg.Source.Revision,
		Version:  version.String(),
	}
	for _, pv := range previews {
		e.Plans = append(e.Plans, pv.Plan.Key())
	}
	s.emit(ctx, e)
}

// emit appends an event to the ledger. Ledger failures are logged only.
func (s *DefaultService) emit(ctx context.Context, e eventstore.Event) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(ctx, e); err != nil {
		observability.WarnContext(ctx, "Failed to record run event", logfields.Error(err))
	}
}

// checkTools verifies the tools of every backend some plan will use.
func (s *DefaultService) checkTools(previews []Preview) error {
	for _, b := range append([]backend.Backend{s.primary}, s.secondary...) {
		used := false
		for _, pv := range previews {
			used = used || b.Supports(pv.Plan.Platform)
		}
		if !used {
			continue
		}
		if err := backend.CheckTools(s.lookPath, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *DefaultService) headerRules() []catalog.HeaderRule {
	rules := make([]catalog.HeaderRule, 0, len(s.cfg.Headers))
	for _, h := range s.cfg.Headers {
		rules = append(rules, catalog.HeaderRule{Source: h.Source, Dest: h.Dest, Pattern: h.Pattern})
	}
	return rules
}

func statusFor(ctx context.Context) Status {
	if ctx.Err() != nil {
		return StatusCancelled
	}
	return StatusFailed
}

func planOutcome(s Status) metrics.PlanOutcome {
	switch s {
	case StatusSuccess:
		return metrics.PlanSucceeded
	case StatusCancelled:
		return metrics.PlanCanceled
	default:
		return metrics.PlanFailed
	}
}
