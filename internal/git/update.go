package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/libforge/internal/logfields"
)

type repoRef struct {
	name     string
	url      string
	path     string
	revision string
	branch   string
	shallow  bool
	// patchSet identifies the patches expected on top of the pinned commit.
	patchSet string
}

// target is the revision to pin: the explicit revision, else the branch tip.
func (r repoRef) target() string {
	if r.revision != "" {
		return r.revision
	}
	return r.branch
}

func (s *Syncer) syncOnce(ctx context.Context, r repoRef) (RepoState, error) {
	repository, fresh, err := openOrInit(r.path, r.url)
	if err != nil {
		return RepoState{}, err
	}
	wt, err := repository.Worktree()
	if err != nil {
		return RepoState{}, fmt.Errorf("worktree: %w", err)
	}

	if !fresh {
		if pinned, ok := pinnedLocally(repository, r); ok {
			head, herr := repository.Head()
			if herr == nil && head.Hash() == pinned {
				clean, cerr := matchesPatched(r.path, wt, pinned.String(), r.patchSet)
				if cerr == nil && clean {
					slog.DebugContext(ctx, "Repository already at pinned revision",
						logfields.Name(r.name), logfields.Revision(r.target()), slog.String("commit", short(pinned)))
					return RepoState{Path: r.path, Revision: r.target(), Commit: pinned.String(), Unchanged: true}, nil
				}
			}
		}
	}

	slog.InfoContext(ctx, "Fetching repository", logfields.Name(r.name), logfields.URL(r.url), logfields.Revision(r.target()))
	if err := s.fetchOrigin(ctx, repository, r); err != nil {
		return RepoState{}, classifyRemoteError("fetch", r.url, err)
	}

	pinned, err := resolvePinned(repository, r)
	if err != nil {
		return RepoState{}, err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: pinned, Force: true}); err != nil {
		return RepoState{}, fmt.Errorf("checkout %s: %w", short(pinned), err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: pinned, Mode: git.HardReset}); err != nil {
		return RepoState{}, fmt.Errorf("hard reset: %w", err)
	}
	if err := clearStamp(r.path); err != nil {
		return RepoState{}, fmt.Errorf("clear patch stamp: %w", err)
	}
	slog.InfoContext(ctx, "Repository synchronized", logfields.Name(r.name), logfields.Revision(r.target()), slog.String("commit", short(pinned)))
	return RepoState{Path: r.path, Revision: r.target(), Commit: pinned.String()}, nil
}

// openOrInit opens an existing repository or initializes an empty one with
// origin pointing at url. The bool reports a new repository.
func openOrInit(path, url string) (*git.Repository, bool, error) {
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		repository, err := git.PlainOpen(path)
		if err != nil {
			return nil, false, fmt.Errorf("open repo: %w", err)
		}
		if err := ensureOrigin(repository, url); err != nil {
			return nil, false, err
		}
		return repository, false, nil
	}

	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, false, fmt.Errorf("create %s: %w", path, err)
	}
	repository, err := git.PlainInit(path, false)
	if err != nil {
		return nil, false, fmt.Errorf("init repo: %w", err)
	}
	if _, err := repository.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{url}}); err != nil {
		return nil, false, fmt.Errorf("create remote: %w", err)
	}
	return repository, true, nil
}

func ensureOrigin(repository *git.Repository, url string) error {
	remote, err := repository.Remote("origin")
	if err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 && urls[0] == url {
			return nil
		}
		if err := repository.DeleteRemote("origin"); err != nil {
			return fmt.Errorf("replace remote: %w", err)
		}
	} else if !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("remote: %w", err)
	}
	if _, err := repository.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{url}}); err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	return nil
}

// fetchOrigin fetches all branches and tags, or only the named ref at depth 1
// for shallow syncs of a branch or tag.
func (s *Syncer) fetchOrigin(ctx context.Context, repository *git.Repository, r repoRef) error {
	opts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Progress:   s.progress,
	}
	if r.shallow {
		if isFullHash(r.target()) {
			slog.DebugContext(ctx, "Shallow fetch not possible for a commit revision", logfields.Name(r.name))
		} else if name, err := remoteRefName(ctx, repository, r.target()); err == nil {
			opts.RefSpecs = []ggitcfg.RefSpec{ggitcfg.RefSpec("+" + name.String() + ":" + localRefName(name).String())}
			opts.Tags = git.NoTags
			opts.Depth = 1
		} else {
			slog.DebugContext(ctx, "Shallow ref lookup failed, fetching full history", logfields.Name(r.name), logfields.Error(err))
		}
	}
	if err := repository.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// remoteRefName finds rev among the remote's advertised branches and tags.
func remoteRefName(ctx context.Context, repository *git.Repository, rev string) (plumbing.ReferenceName, error) {
	remote, err := repository.Remote("origin")
	if err != nil {
		return "", err
	}
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", err
	}
	branch := plumbing.NewBranchReferenceName(rev)
	tag := plumbing.NewTagReferenceName(rev)
	for _, ref := range refs {
		if ref.Name() == branch || ref.Name() == tag {
			return ref.Name(), nil
		}
	}
	return "", fmt.Errorf("ref %s not advertised", rev)
}

func localRefName(name plumbing.ReferenceName) plumbing.ReferenceName {
	if name.IsBranch() {
		return plumbing.NewRemoteReferenceName("origin", name.Short())
	}
	return name
}

// pinnedLocally resolves the pin without the network. Only commits and tags
// qualify; a branch tip always needs a fetch.
func pinnedLocally(repository *git.Repository, r repoRef) (plumbing.Hash, bool) {
	rev := r.revision
	if rev == "" {
		return plumbing.ZeroHash, false
	}
	if isFullHash(rev) {
		h := plumbing.NewHash(rev)
		if _, err := repository.CommitObject(h); err != nil {
			return plumbing.ZeroHash, false
		}
		return h, true
	}
	if _, err := repository.Reference(plumbing.NewTagReferenceName(rev), false); err != nil {
		return plumbing.ZeroHash, false
	}
	h, err := repository.ResolveRevision(plumbing.Revision(plumbing.NewTagReferenceName(rev)))
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return *h, true
}

func resolvePinned(repository *git.Repository, r repoRef) (plumbing.Hash, error) {
	target := r.target()
	candidates := []string{
		plumbing.NewRemoteReferenceName("origin", target).String(),
		plumbing.NewTagReferenceName(target).String(),
		target,
	}
	var lastErr error
	for _, c := range candidates {
		h, err := repository.ResolveRevision(plumbing.Revision(c))
		if err == nil {
			return *h, nil
		}
		lastErr = err
	}
	return plumbing.ZeroHash, &RevisionNotFoundError{URL: r.url, Revision: target, Err: lastErr}
}

func isFullHash(rev string) bool {
	if len(rev) != 40 {
		return false
	}
	for _, c := range rev {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func short(h plumbing.Hash) string {
	return h.String()[:8]
}
