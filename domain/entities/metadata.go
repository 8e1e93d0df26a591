package entities

import (
	"time"
)

// RunMetadata describes one host-side run of a guest program.
type RunMetadata struct {
	// StartTime is when the run started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the guest signalled completion or returned.
	EndTime time.Time `json:"end_time"`

	// ExecutionID is logic.execution_id of the request that was run.
	ExecutionID string `json:"execution_id,omitempty"`

	// Regime is the execution regime the guest ran under.
	Regime string `json:"regime,omitempty"`

	// HostCalls counts the blocking and fire-and-forget calls the guest issued.
	HostCalls int `json:"host_calls"`

	// Suspensions counts how often the guest unwound in the cooperative regime.
	Suspensions int `json:"suspensions,omitempty"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration_ns"`
}

// NewRunMetadata creates a new RunMetadata with the given start and end times.
func NewRunMetadata(start, end time.Time) *RunMetadata {
	return &RunMetadata{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
}

// WithExecutionID sets the execution id and returns m.
func (m *RunMetadata) WithExecutionID(id string) *RunMetadata {
	m.ExecutionID = id
	return m
}

// WithRegime sets the regime and returns m.
func (m *RunMetadata) WithRegime(r Regime) *RunMetadata {
	m.Regime = r.String()
	return m
}
