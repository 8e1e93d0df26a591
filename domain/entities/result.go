package entities

import "time"

// RunStatus is the terminal state of a host-side run.
type RunStatus string

const (
	// RunStatusCompleted means the guest signalled a successful completion.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed means the guest signalled a failed completion.
	RunStatusFailed RunStatus = "failed"

	// RunStatusAbandoned means the guest returned without signalling completion.
	RunStatusAbandoned RunStatus = "abandoned"
)

// RunResult is what the host observes after running a guest program once.
type RunResult struct {
	// Timestamp is when this result was created.
	Timestamp time.Time `json:"timestamp"`

	// Metadata contains execution metadata.
	Metadata *RunMetadata `json:"metadata,omitempty"`

	// Status summarises how the run ended.
	Status RunStatus `json:"status"`

	// Response is the completion signalled by the guest. It is the zero value
	// when Status is RunStatusAbandoned.
	Response Response `json:"response"`
}

// NewRunResult derives the run status from a signalled completion.
func NewRunResult(resp Response, signalled bool) RunResult {
	r := RunResult{Timestamp: time.Now(), Response: resp}
	switch {
	case !signalled:
		r.Status = RunStatusAbandoned
	case resp.OK:
		r.Status = RunStatusCompleted
	default:
		r.Status = RunStatusFailed
	}
	return r
}

// WithMetadata returns a copy of the RunResult with the given metadata attached.
func (r RunResult) WithMetadata(m *RunMetadata) RunResult {
	r.Metadata = m
	return r
}

// IsSuccess returns true if the guest completed successfully.
func (r RunResult) IsSuccess() bool {
	return r.Status == RunStatusCompleted
}
