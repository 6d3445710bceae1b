package models

import "time"

// Event types written to the event log.
const (
	EventModeChange  = "MODE_CHANGE"
	EventCycle       = "CYCLE"
	EventAlarm       = "ALARM"
	EventShutdown    = "SHUTDOWN"
	EventCalibration = "CALIBRATION"
	EventRemote      = "REMOTE"
	EventFault       = "FAULT"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CYCLE | ALARM | SHUTDOWN | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
