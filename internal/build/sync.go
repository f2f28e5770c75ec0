package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/libforge/internal/eventstore"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/git"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/manifest"
	"git.home.luguber.info/inful/libforge/internal/metrics"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/patch"
)

func (s *DefaultService) sourceSpec(req Request) git.SourceSpec {
	src := s.cfg.Source
	spec := git.SourceSpec{
		Name:        src.Name,
		URL:         src.URL,
		Revision:    src.Revision,
		Branch:      src.Branch,
		Shallow:     src.Shallow || req.Shallow,
		DepsFile:    src.DepsFile,
		ExcludeDeps: src.ExcludeDeps,
	}
	if req.Revision != "" {
		spec.Revision = req.Revision
	}
	return spec
}

// syncAndPatch runs the source and patch stages once per run. Only a failed
// sync is fatal; failed patches are reported and the build continues. The
// patch set is loaded first so the syncer can recognize a checkout it
// already patched.
func (s *DefaultService) syncAndPatch(ctx context.Context, runID string, req Request) (*SyncOutcome, error) {
	records, err := s.loadPatches()
	if err != nil {
		s.recorder.IncStageResult("patch", metrics.ResultFatal)
		return nil, err
	}
	spec := s.sourceSpec(req)
	spec.PatchSet = patch.SetDigest(records)

	syncCtx, stage := observability.StartStage(ctx, "sync")
	start := time.Now()
	res, err := s.syncer.Sync(syncCtx, spec)
	elapsed := stage.End(err)
	s.recorder.ObserveStageDuration("sync", elapsed)
	s.recorder.ObserveSync(spec.Name, time.Since(start), err == nil)
	if err != nil {
		s.recorder.IncStageResult("sync", stageResult(ctx, err))
		return nil, err
	}
	s.recorder.IncStageResult("sync", metrics.ResultSuccess)
	s.recordSync(ctx, runID, res, elapsed)

	outcome := &SyncOutcome{Source: res}

	patchCtx, stage := observability.StartStage(ctx, "patch")
	outcome.Patches = s.patcher.Apply(patchCtx, res.Path, records)
	if len(records) > 0 {
		s.markPatched(ctx, res, spec.PatchSet)
	}
	s.recorder.ObserveStageDuration("patch", stage.End(nil))

	for _, r := range outcome.Patches.Results {
		s.recorder.IncPatchOutcome(string(r.Outcome))
		s.emit(ctx, eventstore.PatchApplied{
			Run:     eventstore.Run{ID: runID},
			Name:    r.Name,
			Target:  r.Target,
			Outcome: string(r.Outcome),
			Detail:  r.Detail,
		})
	}
	if failed := outcome.Patches.Failed(); len(failed) > 0 {
		s.recorder.IncStageResult("patch", metrics.ResultWarning)
		for _, r := range failed {
			observability.WarnContext(ctx, "Patch failed, continuing",
				logfields.Patch(r.Name),
				logfields.Path(r.Target))
		}
	} else {
		s.recorder.IncStageResult("patch", metrics.ResultSuccess)
	}
	return outcome, nil
}

func (s *DefaultService) loadPatches() ([]patch.Record, error) {
	records, err := patch.Load(s.cfg.Patches.Directory, s.cfg.Patches.Strip, s.patchTargets())
	if err != nil {
		return nil, errors.FileSystemError("failed to load patches").
			WithContext("directory", s.cfg.Patches.Directory).
			WithCause(err).
			Build()
	}
	return records, nil
}

// verifyPatches reports which patches an existing checkout carries, for runs
// that skip the sync and patch stages.
func (s *DefaultService) verifyPatches(ctx context.Context, srcDir string) (patch.Report, error) {
	records, err := s.loadPatches()
	if err != nil {
		return patch.Report{}, err
	}
	return s.patcher.Verify(ctx, srcDir, records), nil
}

// markPatched stamps every synchronized repository with the patch set so the
// next sync keeps the patched tree. A repository that is not a git checkout,
// such as a local source without a url, is skipped.
func (s *DefaultService) markPatched(ctx context.Context, res *git.SyncResult, patchSet string) {
	paths := []string{res.Path}
	for _, d := range res.Deps {
		if !d.Excluded {
			paths = append(paths, d.RepoState.Path)
		}
	}
	for _, p := range paths {
		if err := git.MarkPatched(p, patchSet); err != nil {
			observability.DebugContext(ctx, "Patch stamp not written", logfields.Path(p), logfields.Error(err))
		}
	}
}

// recordSync reports every synchronized repository. Dependencies carry no
// duration of their own; the stage duration is attributed to the source.
func (s *DefaultService) recordSync(ctx context.Context, runID string, res *git.SyncResult, elapsed time.Duration) {
	s.recordRepo(ctx, runID, res.Name, res.RepoState, elapsed)
	for _, d := range res.Deps {
		if !d.Excluded {
			s.recordRepo(ctx, runID, d.Dep.Path, d.RepoState, 0)
		}
	}
}

func (s *DefaultService) recordRepo(ctx context.Context, runID, name string, st git.RepoState, d time.Duration) {
	for i := 1; i < st.Attempts; i++ {
		s.recorder.IncSyncRetry(name)
	}
	s.emit(ctx, eventstore.SourceSynced{
		Run:        eventstore.Run{ID: runID},
		Repo:       name,
		Commit:     st.Commit,
		Attempts:   st.Attempts,
		DurationMS: eventstore.Millis(d),
	})
}

func (s *DefaultService) patchTargets() []patch.Target {
	targets := make([]patch.Target, 0, len(s.cfg.Patches.Targets))
	for _, t := range s.cfg.Patches.Targets {
		targets = append(targets, patch.Target{Prefix: t.Prefix, Path: t.Path, Strip: t.Strip})
	}
	return targets
}

// manifestInputs describes the source tree for every entry of the run. When
// the sync stage was skipped the checkout's HEAD is recorded instead.
// Patches are identified by content and recorded as present or failed, so
// reapplying an unchanged set leaves the manifest unchanged.
func (s *DefaultService) manifestInputs(outcome *SyncOutcome, patches patch.Report, srcDir string) manifest.Inputs {
	src := s.cfg.Source
	in := manifest.Inputs{Source: manifest.RepoInput{Name: src.Name, URL: src.URL, Revision: src.Revision}}
	for _, r := range patches.Results {
		state := manifest.PatchFailed
		if r.Outcome.Present() {
			state = manifest.PatchPresent
		}
		in.Patches = append(in.Patches, manifest.PatchInput{Name: r.Name, SHA256: r.SHA256, State: state})
	}
	if outcome == nil || outcome.Source == nil {
		if commit, err := git.Head(srcDir); err == nil {
			in.Source.Commit = commit
		}
		return in
	}

	res := outcome.Source
	in.Source.Revision = res.RepoState.Revision
	in.Source.Commit = res.Commit
	for _, d := range res.Deps {
		if d.Excluded {
			continue
		}
		in.Deps = append(in.Deps, manifest.RepoInput{Name: d.Dep.Path, URL: d.URL, Revision: d.Dep.Revision, Commit: d.Commit})
	}
	return in
}

func stageResult(ctx context.Context, err error) metrics.ResultLabel {
	if ctx.Err() != nil {
		return metrics.ResultCanceled
	}
	if errors.HasSeverity(err, errors.SeverityWarning) {
		return metrics.ResultWarning
	}
	return metrics.ResultFatal
}
