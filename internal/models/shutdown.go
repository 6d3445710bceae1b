package models

import "time"

// ShutdownStage is the furthest escalation step reached by a shutdown timer.
type ShutdownStage int

const (
	StageNone ShutdownStage = iota
	Stage24h
	Stage36h
	Stage47h
	Stage71h
	StageShutdown
)

// StageThresholds maps each stage to the continuous-active duration that reaches it.
var StageThresholds = []struct {
	Stage ShutdownStage
	After time.Duration
}{
	{Stage24h, 24 * time.Hour},
	{Stage36h, 36 * time.Hour},
	{Stage47h, 47 * time.Hour},
	{Stage71h, 71 * time.Hour},
	{StageShutdown, 72 * time.Hour},
}

func (s ShutdownStage) String() string {
	switch s {
	case Stage24h:
		return "24h"
	case Stage36h:
		return "36h"
	case Stage47h:
		return "47h"
	case Stage71h:
		return "71h"
	case StageShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// ShutdownTimer tracks how long a shutdown-eligible alarm has been continuously active.
type ShutdownTimer struct {
	Category     AlarmKind     `json:"category"`
	Onset        time.Time     `json:"onset"`
	Stage        ShutdownStage `json:"stage"`
	StageName    string        `json:"stage_name"`
	ShutdownSent bool          `json:"shutdown_sent"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
