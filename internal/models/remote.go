package models

import "time"

// Remote command names forwarded by the microcontroller.
const (
	RemoteStartCycle = "start_cycle"
	RemoteStopCycle  = "stop_cycle"
	RemoteStartTest  = "start_test"
)

// RemoteCommand is a user action that arrived over a channel other than the local control surface.
type RemoteCommand struct {
	Command string `json:"command"`
	Type    string `json:"type,omitempty"`
	// Bypass skips guards that only apply to the local control surface.
	Bypass     bool      `json:"bypass"`
	ReceivedAt time.Time `json:"received_at"`
}

// Calibration is a zero-point calibration result reported by the device.
type Calibration struct {
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}
