package observability

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/libforge/internal/logfields"
)

// Stage times one pipeline stage and logs its start and end.
type Stage struct {
	ctx   context.Context
	name  string
	start time.Time
	now   func() time.Time
}

// StartStage tags ctx with the stage name and logs the start at debug level.
func StartStage(ctx context.Context, name string) (context.Context, *Stage) {
	ctx = WithStage(ctx, name)
	DebugContext(ctx, "stage started")
	return ctx, &Stage{ctx: ctx, name: name, start: time.Now(), now: time.Now}
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// End logs the stage duration (at error level when err is non-nil) and returns it.
func (s *Stage) End(err error) time.Duration {
	d := s.now().Sub(s.start)
	attrs := []slog.Attr{logfields.DurationMS(float64(d.Milliseconds()))}
	if err != nil {
		attrs = append(attrs, logfields.Error(err))
		ErrorContext(s.ctx, "stage failed", attrs...)
		return d
	}
	DebugContext(s.ctx, "stage completed", attrs...)
	return d
}
