// Package observability carries run-scoped log attributes (run id, plan,
// arch, stage) through context.Context, so a line logged deep inside an
// arch task still says which run and plan it belongs to.
package observability

import (
	"context"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/libforge/internal/logfields"
)

type attrsKey struct{}

// With returns ctx carrying attrs in addition to those already present. An
// attribute whose key is already set replaces the earlier value.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := Attrs(ctx)
	next := make([]slog.Attr, 0, len(prev)+len(attrs))
	for _, a := range prev {
		if !slices.ContainsFunc(attrs, func(b slog.Attr) bool { return b.Key == a.Key }) {
			next = append(next, a)
		}
	}
	next = append(next, attrs...)
	return context.WithValue(ctx, attrsKey{}, next)
}

// Attrs returns the attributes stored in ctx. The slice must not be modified.
func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// Value returns the string value stored under key, or "".
func Value(ctx context.Context, key string) string {
	for _, a := range Attrs(ctx) {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return ""
}

func WithRunID(ctx context.Context, id string) context.Context {
	return With(ctx, logfields.RunID(id))
}

func WithPlan(ctx context.Context, plan string) context.Context {
	return With(ctx, logfields.Plan(plan))
}

func WithArch(ctx context.Context, arch string) context.Context {
	return With(ctx, logfields.Arch(arch))
}

func WithStage(ctx context.Context, stage string) context.Context {
	return With(ctx, logfields.Stage(stage))
}

func log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	logger := slog.Default()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, append(slices.Clone(Attrs(ctx)), attrs...)...)
}

func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs)
}

func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs)
}

func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs)
}

func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs)
}
