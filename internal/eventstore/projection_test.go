package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRunsSummarizesRun(t *testing.T) {
	store := newMemoryStore(t)
	run := Run{ID: testRunID}
	for _, e := range []Event{
		RunStarted{Run: run, Command: "build", Plans: []string{"linux-gpu/Release"}, Revision: "chrome/m126"},
		SourceSynced{Run: run, Repo: "skia", Commit: "abc123", Attempts: 2},
		SourceSynced{Run: run, Repo: "third_party/externals/dawn", Commit: "def456", Attempts: 1},
		PatchApplied{Run: run, Name: "0001-fix.patch", Target: ".", Outcome: "applied"},
		PatchApplied{Run: run, Name: "0002-old.patch", Target: ".", Outcome: "failed-non-fatal", Detail: "does not apply"},
		ArchBuilt{Run: run, Plan: "linux-gpu/Release", Arch: "arm64", Error: "missing toolchain"},
		PlanFinished{Run: run, Plan: "linux-gpu/Release", Status: "failed", Reason: "missing toolchain"},
		RunCompleted{Run: run, Status: RunStatusFailed, Failed: 1},
	} {
		require.NoError(t, store.Append(t.Context(), e))
	}

	runs, err := ListRuns(t.Context(), store, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	s := runs[0]
	assert.Equal(t, "build", s.Command)
	assert.Equal(t, "chrome/m126", s.Revision)
	assert.Equal(t, "abc123", s.Commit)
	assert.Equal(t, RunStatusFailed, s.Status)
	assert.Equal(t, 1, s.ArchFailed)
	assert.Equal(t, map[string]int{"applied": 1, "failed-non-fatal": 1}, s.Patches)
	assert.Equal(t, []PlanStatus{{Plan: "linux-gpu/Release", Status: "failed", Reason: "missing toolchain"}}, s.Plans)
	assert.NotNil(t, s.CompletedAt)
}

func TestListRunsNewestFirstAndBounded(t *testing.T) {
	store := newMemoryStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		require.NoError(t, store.Append(t.Context(), RunStarted{Run: Run{ID: id}, Command: "build"}))
	}

	runs, err := ListRuns(t.Context(), store, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, RunStatusRunning, runs[0].Status)
}

func TestSummarizeSkipsAnonymousAndBadPayloads(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	runs := Summarize([]Record{
		{Seq: 1, Type: TypeRunStarted, At: at, Payload: []byte(`{"command":"build"}`)},
		{Seq: 2, RunID: "run-x", Type: TypeRunStarted, At: at, Payload: []byte(`{"command":"sync"}`)},
		{Seq: 3, RunID: "run-x", Type: TypePlanFinished, At: at, Payload: []byte(`not json`)},
		{Seq: 4, RunID: "run-x", Type: TypeRunCompleted, At: at.Add(time.Minute), Payload: []byte(`{"status":"succeeded"}`)},
	})
	require.Len(t, runs, 1)
	assert.Equal(t, "sync", runs[0].Command)
	assert.Empty(t, runs[0].Plans)
	assert.Equal(t, RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, time.Minute, runs[0].Duration)
}
