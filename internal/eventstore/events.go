package eventstore

import "time"

// Event type names as stored in the ledger.
const (
	TypeRunStarted   = "RunStarted"
	TypeSourceSynced = "SourceSynced"
	TypePatchApplied = "PatchApplied"
	TypeArchBuilt    = "ArchBuilt"
	TypePlanFinished = "PlanFinished"
	TypeRunCompleted = "RunCompleted"
)

// Run carries the run ID of every event. It is not part of the payload.
type Run struct {
	ID string `json:"-"`
}

func (r Run) RunID() string { return r.ID }

// RunStarted is emitted once plans are resolved.
type RunStarted struct {
	Run
	Command  string   `json:"command"`
	Plans    []string `json:"plans"`
	Revision string   `json:"revision,omitempty"`
	Version  string   `json:"version,omitempty"`
}

func (RunStarted) Type() string { return TypeRunStarted }

// SourceSynced is emitted for the primary source and every synced DEPS entry.
type SourceSynced struct {
	Run
	Repo       string `json:"repo"`
	Commit     string `json:"commit"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
}

func (SourceSynced) Type() string { return TypeSourceSynced }

// PatchApplied records one patch outcome.
type PatchApplied struct {
	Run
	Name    string `json:"name"`
	Target  string `json:"target"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

func (PatchApplied) Type() string { return TypePatchApplied }

// ArchBuilt records one arch task of a plan.
type ArchBuilt struct {
	Run
	Plan       string `json:"plan"`
	Arch       string `json:"arch"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func (ArchBuilt) Type() string { return TypeArchBuilt }

// PlanFinished is emitted when a plan is assembled or has failed.
type PlanFinished struct {
	Run
	Plan   string `json:"plan"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Entry  string `json:"entry,omitempty"`
}

func (PlanFinished) Type() string { return TypePlanFinished }

// RunCompleted closes a run.
type RunCompleted struct {
	Run
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

func (RunCompleted) Type() string { return TypeRunCompleted }

// Millis converts d for the duration_ms payload fields.
func Millis(d time.Duration) int64 { return d.Milliseconds() }
