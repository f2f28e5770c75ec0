package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// entryStage is a private directory an entry is assembled in before it
// replaces the published one.
type entryStage struct {
	dir  string
	dest string
}

func newStage(dest string) (*entryStage, error) {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".staging-*")
	if err != nil {
		return nil, err
	}
	return &entryStage{dir: dir, dest: dest}, nil
}

// install places src at dst inside the stage. A file the published entry
// already holds with the same bytes is hard-linked, keeping its mtime so
// downstream builds see it unchanged.
func (s *entryStage) install(src, dst string) error {
	if prev := s.published(dst); prev != dst {
		if same, err := sameContent(src, prev); err == nil && same {
			if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
				return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
			}
			if err := os.Link(prev, dst); err == nil {
				return nil
			}
		}
	}
	_, err := installFile(src, dst)
	return err
}

// published maps a path inside the stage to its final location.
func (s *entryStage) published(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.Join(s.dest, rel)
}

// commit replaces dest with the stage. The previous entry is moved aside
// first and restored if the final rename fails.
func (s *entryStage) commit() error {
	old := ""
	if _, err := os.Stat(s.dest); err == nil {
		old = s.dir + ".old"
		if err := os.Rename(s.dest, old); err != nil {
			return fmt.Errorf("move previous entry aside: %w", err)
		}
	}
	if err := os.Rename(s.dir, s.dest); err != nil {
		if old != "" {
			_ = os.Rename(old, s.dest)
		}
		return fmt.Errorf("publish %s: %w", s.dest, err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// discard removes the stage; after a commit there is nothing left to remove.
func (s *entryStage) discard() {
	_ = os.RemoveAll(s.dir)
}
