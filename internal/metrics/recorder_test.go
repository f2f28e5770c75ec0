package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.ObserveStageDuration("build", time.Second)
		r.IncStageResult("build", ResultFatal)
		r.ObserveArchBuild("ios", "arm64", time.Second, false)
	})
	var _ Recorder = (*PrometheusRecorder)(nil)
}
