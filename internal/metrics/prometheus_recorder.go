package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "libforge"

// buildBuckets cover arch builds that take from seconds to over an hour.
var buildBuckets = []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600, 7200}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	runDuration   prom.Histogram
	planOutcomes  *prom.CounterVec
	archDuration  *prom.HistogramVec
	syncDuration  *prom.HistogramVec
	syncRetries   *prom.CounterVec
	patchOutcomes *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   buildBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   buildBuckets,
		}),
		planOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plan_outcomes_total",
			Help:      "Plan outcomes by platform and final status",
		}, []string{"platform", "outcome"}),
		archDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "arch_build_duration_seconds",
			Help:      "Duration of per-architecture builds",
			Buckets:   buildBuckets,
		}, []string{"platform", "arch", "result"}),
		syncDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of repository synchronization",
			Buckets:   prom.DefBuckets,
		}, []string{"repo", "result"}),
		syncRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sync_retries_total",
			Help:      "Transient sync failures that were retried",
		}, []string{"repo"}),
		patchOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "patch_outcomes_total",
			Help:      "Patch application outcomes",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.planOutcomes,
		pr.archDuration, pr.syncDuration, pr.syncRetries, pr.patchOutcomes)
	return pr
}

func resultOf(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPlanOutcome(platform string, outcome PlanOutcome) {
	if p == nil {
		return
	}
	p.planOutcomes.WithLabelValues(platform, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveArchBuild(platform, arch string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	p.archDuration.WithLabelValues(platform, arch, resultOf(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveSync(repo string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	p.syncDuration.WithLabelValues(repo, resultOf(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncRetry(repo string) {
	if p == nil {
		return
	}
	p.syncRetries.WithLabelValues(repo).Inc()
}

func (p *PrometheusRecorder) IncPatchOutcome(outcome string) {
	if p == nil {
		return
	}
	p.patchOutcomes.WithLabelValues(outcome).Inc()
}
