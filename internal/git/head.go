package git

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Head returns the commit checked out in the repository at repoPath. It is
// used when a run skips sync and builds whatever is already on disk.
func Head(repoPath string) (string, error) {
	repository, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: false})
	if err != nil {
		return "", fmt.Errorf("open %s: %w", repoPath, err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD in %s: %w", repoPath, err)
	}
	return ref.Hash().String(), nil
}
