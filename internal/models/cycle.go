package models

import "time"

// Origin identifies who requested a cycle.
type Origin string

const (
	OriginOperator  Origin = "operator"
	OriginAutomatic Origin = "automatic"
	OriginTest      Origin = "test"
	OriginRemote    Origin = "remote"
)

// CycleStep holds one mode for a fixed duration.
type CycleStep struct {
	Mode     Mode          `json:"mode"`
	Duration time.Duration `json:"duration"`
}

// CycleSequence is a flattened, ordered list of steps.
type CycleSequence struct {
	Name   string      `json:"name"`
	Manual bool        `json:"manual"`
	Steps  []CycleStep `json:"steps"`
}

// TotalDuration sums the scheduled time of all steps.
func (s CycleSequence) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total += st.Duration
	}
	return total
}

// Repeat returns steps repeated n times.
func Repeat(n int, steps ...CycleStep) []CycleStep {
	out := make([]CycleStep, 0, n*len(steps))
	for i := 0; i < n; i++ {
		out = append(out, steps...)
	}
	return out
}

// CycleStatus describes the active or last execution.
type CycleStatus struct {
	ExecutionID string        `json:"execution_id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Origin      Origin        `json:"origin,omitempty"`
	Manual      bool          `json:"manual"`
	Running     bool          `json:"running"`
	Cancelled   bool          `json:"cancelled"`
	StepIndex   int           `json:"step_index"`
	StepCount   int           `json:"step_count"`
	StepMode    Mode          `json:"step_mode,omitempty"`
	Remaining   time.Duration `json:"remaining_in_step"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	Paused      bool          `json:"paused"`
}

// PausedCycle is the remainder of a cycle saved for later resumption.
type PausedCycle struct {
	Sequence CycleSequence `json:"sequence"`
	Origin   Origin        `json:"origin"`
	PausedAt time.Time     `json:"paused_at"`
}
