package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/libforge/internal/assemble"
	"git.home.luguber.info/inful/libforge/internal/executor"
	"git.home.luguber.info/inful/libforge/internal/git"
	"git.home.luguber.info/inful/libforge/internal/patch"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
	"git.home.luguber.info/inful/libforge/internal/synth"
)

// Service is the canonical interface for libforge runs.
type Service interface {
	// Run executes sync, patch, build, assemble and bundle.
	Run(ctx context.Context, req Request) (*Result, error)
	// Plan resolves and synthesizes without touching sources or running tools.
	Plan(ctx context.Context, req Request) ([]Preview, error)
	// Sync synchronizes and patches the source tree only.
	Sync(ctx context.Context, req Request) (*SyncOutcome, error)
}

// Request holds the user's build selection. Zero values select defaults.
type Request struct {
	Platforms []platform.Platform
	Archs     []platform.Arch
	Variant   platform.Variant
	CRT       platform.CRT
	Config    platform.BuildType
	Unicode   platform.Unicode
	Target    platform.Target

	// Toolchains override the configured toolchain paths.
	Toolchains map[resolve.ToolchainKind]string

	// Revision overrides the configured source revision.
	Revision string
	Shallow  bool
	// SkipSync builds the existing checkout without fetching or patching.
	SkipSync bool
	// Clean removes per-arch scratch directories before building.
	Clean bool
}

// Status is the outcome of a run or plan.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsSuccess reports whether the status is a success.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// PlanResult is the outcome of one plan.
type PlanResult struct {
	// Name identifies the plan; it is the plan key, or the platform when
	// resolution failed before a plan existed.
	Name   string
	Plan   *resolve.Plan
	Status Status
	Err    error
	Entry  *assemble.Entry
	Arches []executor.ArchResult
}

// Preview is one resolved plan with its rendered configuration.
type Preview struct {
	Plan   *resolve.Plan
	Config *synth.Result
}

// SyncOutcome reports the source and patch stages.
type SyncOutcome struct {
	Source  *git.SyncResult
	Patches patch.Report
}

// Result contains the outcome of a run.
type Result struct {
	RunID   string
	Status  Status
	Sync    *SyncOutcome
	Plans   []PlanResult
	Bundles []*assemble.Bundle
	// BundleErrors holds bundle failures keyed by bundle name.
	BundleErrors map[string]error

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// FirstFailure returns the first failed plan in plan order.
func (r *Result) FirstFailure() *PlanResult {
	for i := range r.Plans {
		if r.Plans[i].Status != StatusSuccess {
			return &r.Plans[i]
		}
	}
	return nil
}

// Counts returns how many plans succeeded and failed.
func (r *Result) Counts() (succeeded, failed int) {
	for _, p := range r.Plans {
		if p.Status == StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
