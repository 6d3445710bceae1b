package models

import "time"

// SensorSnapshot is the latest status reported by the microcontroller.
type SensorSnapshot struct {
	Pressure   float64   `json:"pressure"`
	Current    float64   `json:"current"`
	Overfill   bool      `json:"overfill"`
	SDCard     string    `json:"sdcard"`
	RelayMode  int       `json:"relay_mode"`
	Failsafe   bool      `json:"failsafe"`
	Shutdown   bool      `json:"shutdown"`
	ReceivedAt time.Time `json:"received_at"`
	Stale      bool      `json:"stale"`
}

// Valid reports whether at least one status message has been received.
func (s SensorSnapshot) Valid() bool {
	return !s.ReceivedAt.IsZero()
}

// ExtendedStatus holds slow-changing device fields. Nil pointers were never reported.
type ExtendedStatus struct {
	DateTime       *string   `json:"datetime,omitempty"`
	LTE            *bool     `json:"lte,omitempty"`
	RSSI           *int      `json:"rssi,omitempty"`
	Carrier        *string   `json:"carrier,omitempty"`
	Profile        *string   `json:"profile,omitempty"`
	FailsafeReason *string   `json:"failsafe_reason,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Merge copies every field present in other onto s.
func (s *ExtendedStatus) Merge(other ExtendedStatus) {
	if other.DateTime != nil {
		s.DateTime = other.DateTime
	}
	if other.LTE != nil {
		s.LTE = other.LTE
	}
	if other.RSSI != nil {
		s.RSSI = other.RSSI
	}
	if other.Carrier != nil {
		s.Carrier = other.Carrier
	}
	if other.Profile != nil {
		s.Profile = other.Profile
	}
	if other.FailsafeReason != nil {
		s.FailsafeReason = other.FailsafeReason
	}
	if other.UpdatedAt.After(s.UpdatedAt) {
		s.UpdatedAt = other.UpdatedAt
	}
}

// Sample is one stored sensor reading, live or backfilled.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Pressure  float64   `json:"pressure"`
	Current   float64   `json:"current"`
	Mode      int       `json:"mode"`
	Error     string    `json:"error,omitempty"`
	Backfill  bool      `json:"backfill,omitempty"`
}
