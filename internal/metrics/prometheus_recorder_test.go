package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("sync", 150*time.Millisecond)
	pr.IncStageResult("sync", ResultSuccess)
	pr.ObserveRunDuration(time.Second)
	pr.IncPlanOutcome("linux", PlanSucceeded)
	pr.ObserveArchBuild("linux", "x64", 90*time.Second, true)
	pr.ObserveSync("skia", time.Second, false)
	pr.IncSyncRetry("skia")
	pr.IncPatchOutcome("applied")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["libforge_plan_outcomes_total"])
	assert.True(t, names["libforge_arch_build_duration_seconds"])
	assert.True(t, names["libforge_sync_retries_total"])
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPlanOutcome("wasm", PlanFailed)
	path := filepath.Join(t.TempDir(), "metrics", "libforge.prom")

	require.NoError(t, WriteTextfile(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `libforge_plan_outcomes_total{outcome="failed",platform="wasm"} 1`)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncPlanOutcome("mac", PlanCanceled)
		pr.ObserveRunDuration(time.Second)
	})
}
