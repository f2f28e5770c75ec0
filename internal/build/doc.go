// Package build is the libforge orchestration pipeline. Every entry point
// (build, plan, sync) routes through Service.
//
// A run resolves plans, synthesizes their configurations, synchronizes and
// patches the source tree once, then builds every plan concurrently. Plans
// are isolated: one plan's failure is recorded in the result and never stops
// the others.
package build
