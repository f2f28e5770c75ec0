package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/libforge/internal/logfields"
)

// Layout resolves every path libforge reads or writes.
type Layout struct {
	root   string
	output string
}

// NewLayout creates a layout under root. An empty output selects <root>/dist.
func NewLayout(root, output string) *Layout {
	if root == "" {
		root = "build"
	}
	if output == "" {
		output = filepath.Join(root, "dist")
	}
	return &Layout{root: root, output: output}
}

// Create ensures the top-level directories exist.
func (l *Layout) Create() error {
	for _, dir := range []string{l.SourceDir(), l.TmpDir(), l.output} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	slog.Debug("Workspace ready", logfields.Path(l.root))
	return nil
}

func (l *Layout) Root() string       { return l.root }
func (l *Layout) SourceDir() string  { return filepath.Join(l.root, "src") }
func (l *Layout) TmpDir() string     { return filepath.Join(l.root, "tmp") }
func (l *Layout) OutputDir() string  { return l.output }
func (l *Layout) IncludeDir() string { return filepath.Join(l.output, "include") }
func (l *Layout) BundleDir() string  { return filepath.Join(l.output, "bundles") }

// SourcePath returns the checkout directory of a named source.
func (l *Layout) SourcePath(name string) string {
	return filepath.Join(l.SourceDir(), name)
}

// ArchDir returns the private scratch directory of one arch task.
func (l *Layout) ArchDir(platform, config, arch string) string {
	return filepath.Join(l.TmpDir(), platform+"_"+config+"_"+arch)
}

// PrepareArchDir creates the scratch directory of one arch task.
func (l *Layout) PrepareArchDir(platform, config, arch string) (string, error) {
	dir := l.ArchDir(platform, config, arch)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create arch directory: %w", err)
	}
	return dir, nil
}

// EntryDir returns the distribution directory of one plan.
func (l *Layout) EntryDir(product, plan string) string {
	return filepath.Join(l.output, product+"-"+plan)
}

// CleanTmp removes every scratch directory.
func (l *Layout) CleanTmp() error {
	if err := os.RemoveAll(l.TmpDir()); err != nil {
		return fmt.Errorf("failed to clean scratch directories: %w", err)
	}
	slog.Info("Cleaned scratch directories", logfields.Path(l.TmpDir()))
	return nil
}
