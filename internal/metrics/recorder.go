package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// PlanOutcome is the final status of one plan.
type PlanOutcome string

const (
	PlanSucceeded PlanOutcome = "succeeded"
	PlanFailed    PlanOutcome = "failed"
	PlanCanceled  PlanOutcome = "canceled"
)

// Recorder defines observability hooks for a libforge run.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncPlanOutcome(platform string, outcome PlanOutcome)
	ObserveArchBuild(platform, arch string, d time.Duration, success bool)
	ObserveSync(repo string, d time.Duration, success bool)
	IncSyncRetry(repo string)
	IncPatchOutcome(outcome string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)              {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                      {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                        {}
func (NoopRecorder) IncPlanOutcome(string, PlanOutcome)                      {}
func (NoopRecorder) ObserveArchBuild(string, string, time.Duration, bool)    {}
func (NoopRecorder) ObserveSync(string, time.Duration, bool)                 {}
func (NoopRecorder) IncSyncRetry(string)                                     {}
func (NoopRecorder) IncPatchOutcome(string)                                  {}
