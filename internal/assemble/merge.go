package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

// Merger combines single-architecture archives into one universal archive.
type Merger interface {
	// Archs returns the architectures contained in an archive.
	Archs(ctx context.Context, path string) ([]string, error)
	// Merge writes the universal archive to dst. On failure dst is not created.
	Merge(ctx context.Context, dst string, inputs []string) error
}

// Lipo is the Apple lipo merger.
type Lipo struct {
	runner execx.Runner
	tool   string
}

// NewLipo returns a merger running tool (default "lipo").
func NewLipo(runner execx.Runner, tool string) *Lipo {
	if tool == "" {
		tool = "lipo"
	}
	return &Lipo{runner: runner, tool: tool}
}

func (l *Lipo) Archs(ctx context.Context, path string) ([]string, error) {
	res, err := l.runner.Run(ctx, execx.Command{Name: l.tool, Args: []string{"-archs", path}})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s -archs %s exited with %d: %s", l.tool, path, res.ExitCode, res.Tail(5))
	}
	return strings.Fields(res.Stdout), nil
}

func (l *Lipo) Merge(ctx context.Context, dst string, inputs []string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.FileSystemError("failed to create library directory").WithCause(err).Build()
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".merge-*")
	if err != nil {
		return errors.FileSystemError("failed to create merge temp file").WithCause(err).Build()
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	args := append([]string{"-create", "-output", tmpName}, inputs...)
	res, err := l.runner.Run(ctx, execx.Command{Name: l.tool, Args: args})
	if err == nil && !res.Success() {
		err = fmt.Errorf("%s exited with %d: %s", l.tool, res.ExitCode, res.Tail(10))
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.ArchitectureMergeConflict(filepath.Base(dst)).
			WithCause(err).
			WithContext("inputs", strings.Join(inputs, " ")).
			Build()
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return errors.FileSystemError("failed to chmod merged library").WithCause(err).Build()
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return errors.FileSystemError("failed to install merged library").WithCause(err).WithContext("path", dst).Build()
	}
	return nil
}

// checkMerge probes every input and rejects overlapping architectures
// before anything is written.
func checkMerge(ctx context.Context, m Merger, library string, inputs []string) error {
	owner := make(map[string]string)
	for _, in := range inputs {
		archs, err := m.Archs(ctx, in)
		if err != nil {
			return errors.ArchitectureMergeConflict(library).
				WithCause(err).
				WithContext("input", in).
				Build()
		}
		if len(archs) == 0 {
			return errors.ArchitectureMergeConflict(library).
				WithContext("input", in).
				WithContext("reason", "no architectures reported").
				Build()
		}
		for _, a := range archs {
			if prev, dup := owner[a]; dup {
				return errors.ArchitectureMergeConflict(library).
					WithContext("arch", a).
					WithContext("inputs", prev+" "+in).
					Build()
			}
			owner[a] = in
		}
	}
	return nil
}
