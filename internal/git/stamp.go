package git

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// stampFile lives inside .git so it is never part of the worktree.
const stampFile = "libforge-patched.json"

// patchStamp records the tree a patch set left behind on a pinned commit.
type patchStamp struct {
	Commit   string `json:"commit"`
	PatchSet string `json:"patch_set"`
	// Files maps each tracked path the patches changed to the sha256 of its
	// content; an empty digest marks a deleted file.
	Files map[string]string `json:"files"`
}

// MarkPatched records the current modifications of the checkout at path as
// the result of applying patchSet on its HEAD commit. A later sync with the
// same patch set treats exactly these modifications as expected.
func MarkPatched(path, patchSet string) error {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	head, err := repository.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	dirty, err := dirtyTracked(wt)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	files, err := digestFiles(path, dirty)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(patchStamp{Commit: head.Hash().String(), PatchSet: patchSet, Files: files}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(stampPath(path), data, 0o600)
}

// matchesPatched reports whether the only modifications of the checkout are
// the ones recorded for patchSet on commit.
func matchesPatched(path string, wt *git.Worktree, commit, patchSet string) (bool, error) {
	dirty, err := dirtyTracked(wt)
	if err != nil {
		return false, err
	}
	if len(dirty) == 0 {
		return true, nil
	}
	if patchSet == "" {
		return false, nil
	}
	stamp, err := readStamp(path)
	if err != nil || stamp == nil {
		return false, err
	}
	if stamp.Commit != commit || stamp.PatchSet != patchSet || len(stamp.Files) != len(dirty) {
		return false, nil
	}
	current, err := digestFiles(path, dirty)
	if err != nil {
		return false, err
	}
	for p, sum := range current {
		if want, ok := stamp.Files[p]; !ok || want != sum {
			return false, nil
		}
	}
	return true, nil
}

func readStamp(path string) (*patchStamp, error) {
	data, err := os.ReadFile(stampPath(path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st patchStamp
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt stamp proves nothing; the checkout is reset.
		return nil, nil
	}
	return &st, nil
}

func clearStamp(path string) error {
	if err := os.Remove(stampPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func stampPath(path string) string {
	return filepath.Join(path, ".git", stampFile)
}

// dirtyTracked lists tracked paths that differ from HEAD. Untracked files,
// such as nested dependency checkouts, are ignored.
func dirtyTracked(wt *git.Worktree) ([]string, error) {
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	var out []string
	for p, fs := range status {
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			continue
		}
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func digestFiles(root string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if os.IsNotExist(err) {
			out[p] = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sum := sha256.Sum256(data)
		out[p] = hex.EncodeToString(sum[:])
	}
	return out, nil
}
