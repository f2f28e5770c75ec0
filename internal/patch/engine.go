package patch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
)

// Result is the outcome of one record.
type Result struct {
	Name    string  `json:"name"`
	SHA256  string  `json:"sha256"`
	Target  string  `json:"target,omitempty"`
	Outcome Outcome `json:"outcome"`
	// Detail holds the tool diagnostics for failures.
	Detail string `json:"detail,omitempty"`
}

// Report lists results in application order.
type Report struct {
	Results []Result
}

// Count returns how many records ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the records that could not be applied.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Engine applies records in order. Failures never stop the sequence.
type Engine struct {
	applier Applier
}

// NewEngine creates an engine over an Applier.
func NewEngine(applier Applier) *Engine {
	return &Engine{applier: applier}
}

// Apply applies records below root and reports one result per record.
func (e *Engine) Apply(ctx context.Context, root string, records []Record) Report {
	report := Report{Results: make([]Result, 0, len(records))}
	for _, rec := range records {
		res := e.applyOne(ctx, root, rec)
		report.Results = append(report.Results, res)

		attrs := []any{logfields.Patch(rec.Name), logfields.Outcome(string(res.Outcome))}
		if rec.TargetPrefix != "" {
			attrs = append(attrs, logfields.Path(rec.TargetPrefix))
		}
		if res.Outcome == OutcomeFailed {
			err := errors.PatchFailed(rec.Name).WithContext("detail", res.Detail).Build()
			slog.WarnContext(ctx, "Patch failed, continuing", append(attrs, logfields.Error(err))...)
			continue
		}
		slog.InfoContext(ctx, "Patch processed", attrs...)
	}
	return report
}

// Verify reports which records are present below root without modifying
// the tree. Records that are not present are reported as failed.
func (e *Engine) Verify(ctx context.Context, root string, records []Record) Report {
	report := Report{Results: make([]Result, 0, len(records))}
	for _, rec := range records {
		res := Result{Name: rec.Name, SHA256: rec.Digest(), Target: rec.TargetPrefix, Outcome: OutcomeAlreadyApplied}
		dir := filepath.Join(root, filepath.FromSlash(rec.TargetPrefix))
		if err := e.applier.CheckReverse(ctx, dir, rec); err != nil {
			res.Outcome = OutcomeFailed
			res.Detail = "not present in checkout: " + err.Error()
		}
		slog.DebugContext(ctx, "Patch verified", logfields.Patch(rec.Name), logfields.Outcome(string(res.Outcome)))
		report.Results = append(report.Results, res)
	}
	return report
}

func (e *Engine) applyOne(ctx context.Context, root string, rec Record) Result {
	res := Result{Name: rec.Name, SHA256: rec.Digest(), Target: rec.TargetPrefix}
	fail := func(err error) Result {
		res.Outcome = OutcomeFailed
		res.Detail = err.Error()
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	dir := filepath.Join(root, filepath.FromSlash(rec.TargetPrefix))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.FileSystemError("patch target is not a directory").Build()
		}
		return fail(err)
	}

	if err := e.applier.CheckReverse(ctx, dir, rec); err == nil {
		res.Outcome = OutcomeAlreadyApplied
		return res
	}
	if err := e.applier.Check(ctx, dir, rec); err != nil {
		return fail(err)
	}
	if err := e.applier.Apply(ctx, dir, rec); err != nil {
		return fail(err)
	}
	res.Outcome = OutcomeApplied
	return res
}
