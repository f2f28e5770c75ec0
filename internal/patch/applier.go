package patch

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/libforge/internal/execx"
)

// Applier is the patch mechanism. Each method runs in dir, the resolved
// target directory of the record.
type Applier interface {
	// CheckReverse succeeds when the patch is already present.
	CheckReverse(ctx context.Context, dir string, rec Record) error
	Check(ctx context.Context, dir string, rec Record) error
	Apply(ctx context.Context, dir string, rec Record) error
}

// ApplyError carries the tool's diagnostics for a failed invocation.
type ApplyError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s exited with %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// GitApplier drives `git apply` through an execx.Runner.
type GitApplier struct {
	runner execx.Runner
	git    string
}

// NewGitApplier returns an applier that runs the git binary found on PATH.
func NewGitApplier(runner execx.Runner) *GitApplier {
	return &GitApplier{runner: runner, git: "git"}
}

func (g *GitApplier) CheckReverse(ctx context.Context, dir string, rec Record) error {
	return g.run(ctx, dir, rec, "-R", "--check")
}

func (g *GitApplier) Check(ctx context.Context, dir string, rec Record) error {
	return g.run(ctx, dir, rec, "--check")
}

func (g *GitApplier) Apply(ctx context.Context, dir string, rec Record) error {
	return g.run(ctx, dir, rec)
}

func (g *GitApplier) run(ctx context.Context, dir string, rec Record, extra ...string) error {
	args := append([]string{"apply"}, extra...)
	args = append(args, "--ignore-whitespace", "-p"+strconv.Itoa(rec.Strip), "-")
	cmd := execx.Command{
		Name:  g.git,
		Args:  args,
		Dir:   dir,
		Stdin: bytes.NewReader(rec.Body),
	}
	res, err := g.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &ApplyError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Tail(20)}
	}
	return nil
}
