package git

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/libforge/internal/logfields"
)

// withRetry runs fn under the syncer's policy and returns the number of
// attempts made. Permanent errors end the loop at once.
func (s *Syncer) withRetry(ctx context.Context, op, name string, fn func(ctx context.Context) error) (int, error) {
	log := slog.With(slog.String("operation", op), logfields.Name(name))
	hooks := s.hooks
	hooks.Permanent = isPermanentGitError
	hooks.OnRetry = func(retry int, delay time.Duration, err error) {
		log.WarnContext(ctx, "Retrying git operation",
			logfields.Attempt(retry+1), slog.Duration("delay", delay), logfields.Error(err))
	}

	attempts, err := s.policy.Do(ctx, hooks, fn)
	switch {
	case err == nil:
	case isPermanentGitError(err):
		log.ErrorContext(ctx, "Git operation failed permanently", logfields.Attempt(attempts), logfields.Error(err))
	default:
		log.ErrorContext(ctx, "Git operation failed after retries", logfields.Attempt(attempts), logfields.Error(err))
	}
	return attempts, err
}
