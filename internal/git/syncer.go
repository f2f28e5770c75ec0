package git

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/retry"
)

// SourceSpec describes the primary source tree to synchronize.
type SourceSpec struct {
	Name string
	URL  string
	// Revision is a commit hash, tag or branch. Branch is used when Revision is empty.
	Revision string
	Branch   string
	Shallow  bool
	// DepsFile is the DEPS file relative to the source root; empty disables dep sync.
	DepsFile    string
	ExcludeDeps []string
	// PatchSet identifies the patches applied after every sync. Modifications
	// recorded by MarkPatched for the same set keep a checkout unchanged.
	PatchSet string
}

// RepoState is the outcome of synchronizing one repository.
type RepoState struct {
	Path      string
	Revision  string
	Commit    string
	Unchanged bool
	Attempts  int
}

// DepResult is the outcome for one DEPS entry.
type DepResult struct {
	Dep
	RepoState
	Excluded bool
	// Removed is set when an excluded dependency directory was deleted.
	Removed bool
}

// SyncResult reports the source tree and every DEPS entry.
type SyncResult struct {
	Name string
	RepoState
	Deps []DepResult
}

// Syncer synchronizes repositories below a source root.
type Syncer struct {
	root     string
	policy   retry.Policy
	hooks    retry.Hooks
	progress io.Writer
}

// NewSyncer creates a syncer that places sources under root.
func NewSyncer(root string, policy retry.Policy) *Syncer {
	return &Syncer{root: root, policy: policy}
}

// WithSleep replaces the backoff sleep (fluent helper for tests).
func (s *Syncer) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Syncer {
	s.hooks.Sleep = fn
	return s
}

// WithProgress streams go-git transfer progress to w.
func (s *Syncer) WithProgress(w io.Writer) *Syncer {
	s.progress = w
	return s
}

// SourcePath returns where a source named name lives.
func (s *Syncer) SourcePath(name string) string {
	return filepath.Join(s.root, name)
}

// Sync brings the source tree and its sub-dependencies to their pinned revisions.
func (s *Syncer) Sync(ctx context.Context, spec SourceSpec) (*SyncResult, error) {
	path := s.SourcePath(spec.Name)
	res := &SyncResult{Name: spec.Name}

	if spec.URL == "" {
		commit, err := Head(path)
		if err != nil {
			return nil, errors.SyncFailed("source has no url and no local checkout").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
		slog.InfoContext(ctx, "Using local source checkout", logfields.Name(spec.Name), logfields.Path(path))
		res.RepoState = RepoState{Path: path, Commit: commit, Unchanged: true}
		return res, nil
	}

	ref := repoRef{
		name:     spec.Name,
		url:      spec.URL,
		path:     path,
		revision: spec.Revision,
		branch:   spec.Branch,
		shallow:  spec.Shallow,
		patchSet: spec.PatchSet,
	}
	state, err := s.syncWithRetry(ctx, ref)
	if err != nil {
		return nil, err
	}
	res.RepoState = state

	if spec.DepsFile == "" {
		return res, nil
	}
	deps, err := ReadDeps(filepath.Join(path, spec.DepsFile))
	if err != nil {
		if os.IsNotExist(err) {
			slog.DebugContext(ctx, "No DEPS file, skipping sub-dependencies", logfields.Path(spec.DepsFile))
			return res, nil
		}
		return nil, errors.SyncFailed("failed to read DEPS file").
			WithCause(err).
			WithContext("path", spec.DepsFile).
			Build()
	}

	for _, dep := range deps {
		depPath := filepath.Join(path, filepath.FromSlash(dep.Path))
		if Excluded(dep.Path, spec.ExcludeDeps) {
			removed, err := removeExcluded(depPath)
			if err != nil {
				return nil, err
			}
			if removed {
				slog.InfoContext(ctx, "Removed excluded dependency", logfields.Dep(dep.Path))
			}
			res.Deps = append(res.Deps, DepResult{Dep: dep, Excluded: true, Removed: removed})
			continue
		}
		state, err := s.syncWithRetry(ctx, repoRef{
			name:     dep.Path,
			url:      dep.URL,
			path:     depPath,
			revision: dep.Revision,
			shallow:  spec.Shallow,
			patchSet: spec.PatchSet,
		})
		if err != nil {
			return nil, err
		}
		res.Deps = append(res.Deps, DepResult{Dep: dep, RepoState: state})
	}
	return res, nil
}

func (s *Syncer) syncWithRetry(ctx context.Context, ref repoRef) (RepoState, error) {
	var state RepoState
	attempts, err := s.withRetry(ctx, "sync", ref.name, func(ctx context.Context) error {
		var err error
		state, err = s.syncOnce(ctx, ref)
		return err
	})
	if err != nil {
		return RepoState{}, errors.SyncFailed("failed to sync "+ref.name).
			WithCause(err).
			WithContext("url", ref.url).
			WithContext("revision", ref.target()).
			WithContext("attempts", strconv.Itoa(attempts)).
			Build()
	}
	state.Attempts = attempts
	return state, nil
}

func removeExcluded(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.FileSystemError("failed to inspect excluded dependency").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if err := os.RemoveAll(path); err != nil {
		return false, errors.FileSystemError("failed to remove excluded dependency").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return true, nil
}
