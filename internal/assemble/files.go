package assemble

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/libforge/internal/manifest"
)

// installFile copies src to dst through a temp file and rename. It leaves dst
// untouched when it already holds the same bytes and reports whether it wrote.
func installFile(src, dst string) (bool, error) {
	same, err := sameContent(src, dst)
	if err != nil {
		return false, err
	}
	if same {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".install-*")
	if err != nil {
		return false, fmt.Errorf("create temp for %s: %w", dst, err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("close temp for %s: %w", dst, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return false, fmt.Errorf("rename into %s: %w", dst, err)
	}
	return true, nil
}

// sameContent reports whether dst exists with the same bytes as src.
func sameContent(src, dst string) (bool, error) {
	di, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	si, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if si.Size() != di.Size() {
		return false, nil
	}
	// Small files are compared directly.
	if si.Size() <= 1<<20 {
		a, err := os.ReadFile(src)
		if err != nil {
			return false, err
		}
		b, err := os.ReadFile(dst)
		if err != nil {
			return false, err
		}
		return bytes.Equal(a, b), nil
	}
	a, _, err := manifest.HashFile(src)
	if err != nil {
		return false, err
	}
	b, _, err := manifest.HashFile(dst)
	if err != nil {
		return false, err
	}
	return a == b, nil
}
