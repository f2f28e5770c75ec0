package eventstore

import (
	"context"
	"sort"
	"time"
)

// Run statuses recorded in RunCompleted.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PlanStatus is one plan's final state inside a run summary.
type PlanStatus struct {
	Plan   string `json:"plan"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// RunSummary folds the events of one run. A run without RunCompleted is
// still running, or was killed.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	Command     string         `json:"command,omitempty"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`
	Revision    string         `json:"revision,omitempty"`
	Commit      string         `json:"commit,omitempty"`
	Plans       []PlanStatus   `json:"plans,omitempty"`
	ArchFailed  int            `json:"arch_failed"`
	Patches     map[string]int `json:"patches,omitempty"`
}

// apply folds one record into s. Records whose payload does not decode
// only move the timestamps.
func (s *RunSummary) apply(r Record) {
	switch r.Type {
	case TypeRunStarted:
		s.StartedAt = r.At
		var e RunStarted
		if r.Decode(&e) == nil {
			s.Command, s.Revision = e.Command, e.Revision
		}
	case TypeSourceSynced:
		// The primary source is synced before any DEPS entry.
		var e SourceSynced
		if s.Commit == "" && r.Decode(&e) == nil {
			s.Commit = e.Commit
		}
	case TypePatchApplied:
		var e PatchApplied
		if r.Decode(&e) == nil {
			if s.Patches == nil {
				s.Patches = map[string]int{}
			}
			s.Patches[e.Outcome]++
		}
	case TypeArchBuilt:
		var e ArchBuilt
		if r.Decode(&e) == nil && !e.Success {
			s.ArchFailed++
		}
	case TypePlanFinished:
		var e PlanFinished
		if r.Decode(&e) == nil {
			s.Plans = append(s.Plans, PlanStatus{Plan: e.Plan, Status: e.Status, Reason: e.Reason})
		}
	case TypeRunCompleted:
		at := r.At
		s.CompletedAt = &at
		s.Duration = at.Sub(s.StartedAt)
		var e RunCompleted
		if r.Decode(&e) == nil && e.Status != "" {
			s.Status = e.Status
		}
	}
}

// Summarize groups records by run and folds each group. Records without a
// run ID are skipped. The result is newest first.
func Summarize(records []Record) []*RunSummary {
	byRun := map[string]*RunSummary{}
	for _, r := range records {
		if r.RunID == "" {
			continue
		}
		s, ok := byRun[r.RunID]
		if !ok {
			s = &RunSummary{RunID: r.RunID, Status: RunStatusRunning, StartedAt: r.At}
			byRun[r.RunID] = s
		}
		s.apply(r)
	}

	out := make([]*RunSummary, 0, len(byRun))
	for _, s := range byRun {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID > out[j].RunID
	})
	return out
}

// ListRuns returns up to limit runs from store, newest first. A limit of
// zero or less means all.
func ListRuns(ctx context.Context, store Store, limit int) ([]*RunSummary, error) {
	records, err := store.Since(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	runs := Summarize(records)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
