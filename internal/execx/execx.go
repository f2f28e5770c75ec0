// Package execx is the single place libforge starts external processes.
// Every invocation captures its exit status and the tail of its output and
// is bound to a context whose cancellation interrupts the child.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTailBytes bounds the captured stdout and stderr kept in a Result.
const DefaultTailBytes = 16 << 10

// DefaultWaitDelay is how long a cancelled child may take to exit after the
// interrupt before it is killed.
const DefaultWaitDelay = 10 * time.Second

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current process environment.
	Env []string
	// Stdin is optional.
	Stdin io.Reader
	// Log, when set, receives the full combined output as it is produced.
	Log io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a command that started.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports a zero exit status.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Tail returns the last n lines of stderr, falling back to stdout.
func (r *Result) Tail(n int) string {
	src := r.Stderr
	if strings.TrimSpace(src) == "" {
		src = r.Stdout
	}
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner starts processes. A non-zero exit is reported through
// Result.ExitCode with a nil error; the error is reserved for processes that
// could not be started or were cancelled.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// LookPather resolves tool names on PATH.
type LookPather interface {
	LookPath(name string) (string, error)
}

// OSRunner runs commands with os/exec.
type OSRunner struct {
	TailBytes int
	WaitDelay time.Duration
}

// NewOSRunner returns a runner with default limits.
func NewOSRunner() *OSRunner {
	return &OSRunner{TailBytes: DefaultTailBytes, WaitDelay: DefaultWaitDelay}
}

// LookPath implements LookPather.
func (r *OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements Runner.
func (r *OSRunner) Run(ctx context.Context, c Command) (*Result, error) {
	limit := r.TailBytes
	if limit <= 0 {
		limit = DefaultTailBytes
	}
	stdout := newTailBuffer(limit)
	stderr := newTailBuffer(limit)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Log != nil {
		log := &lockedWriter{w: c.Log}
		cmd.Stdout = io.MultiWriter(stdout, log)
		cmd.Stderr = io.MultiWriter(stderr, log)
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
		return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	if err != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("start %s: %w", c.Name, err)
	}
	return res, nil
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])
		return n, nil
	}
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
