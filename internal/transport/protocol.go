package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vapor_recovery/internal/models"
)

// MessageKind classifies an inbound line.
type MessageKind int

const (
	KindStatus MessageKind = iota + 1
	KindExtended
	KindCalibration
	KindRemote
	KindBackfill
)

var errUnrecognized = errors.New("unrecognized message")

// Message is one parsed inbound line. Exactly one payload field is set, matching Kind.
type Message struct {
	Kind        MessageKind
	Status      models.SensorSnapshot
	Extended    models.ExtendedStatus
	Calibration float64
	Remote      models.RemoteCommand
	Backfill    []models.Sample
}

type statusFrame struct {
	Pressure  *float64 `json:"pressure"`
	Current   *float64 `json:"current"`
	Overfill  int      `json:"overfill"`
	SDCard    string   `json:"sdcard"`
	RelayMode int      `json:"relayMode"`
	Failsafe  int      `json:"failsafe"`
	Shutdown  int      `json:"shutdown"`
}

type backfillRecord struct {
	Timestamp flexTime `json:"timestamp"`
	Pressure  float64  `json:"pressure"`
	Current   float64  `json:"current"`
	Mode      int      `json:"mode"`
	Error     any      `json:"error"`
}

// flexTime accepts unix seconds or an RFC3339 / "2006-01-02 15:04:05" string.
type flexTime struct{ time.Time }

func (f *flexTime) UnmarshalJSON(b []byte) error {
	if n, err := strconv.ParseFloat(string(b), 64); err == nil {
		sec := int64(n)
		f.Time = time.Unix(sec, int64((n-float64(sec))*1e9)).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("flexTime: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("flexTime: unsupported timestamp %q", s)
}

var extendedKeys = []string{"datetime", "lte", "rssi", "carrier", "profile", "failsafe_reason"}

// ParseLine decodes one inbound line received at now.
func ParseLine(line []byte, now time.Time) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Message{}, errUnrecognized
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, fmt.Errorf("ParseLine: %w", err)
	}

	switch {
	case has(raw, "backfill"):
		return parseBackfill(raw["backfill"])
	case has(raw, "command"):
		var rc models.RemoteCommand
		if err := json.Unmarshal(line, &rc); err != nil {
			return Message{}, fmt.Errorf("ParseLine: remote: %w", err)
		}
		if rc.Command == "" {
			return Message{}, errUnrecognized
		}
		rc.Bypass = true
		rc.ReceivedAt = now
		return Message{Kind: KindRemote, Remote: rc}, nil
	case has(raw, "ps_cal"):
		var v float64
		if err := json.Unmarshal(raw["ps_cal"], &v); err != nil {
			return Message{}, fmt.Errorf("ParseLine: ps_cal: %w", err)
		}
		return Message{Kind: KindCalibration, Calibration: v}, nil
	case has(raw, "pressure"):
		return parseStatus(line, now)
	case hasAny(raw, extendedKeys...):
		var ext models.ExtendedStatus
		if err := json.Unmarshal(line, &ext); err != nil {
			return Message{}, fmt.Errorf("ParseLine: extended: %w", err)
		}
		ext.UpdatedAt = now
		return Message{Kind: KindExtended, Extended: ext}, nil
	}
	return Message{}, errUnrecognized
}

func parseStatus(line []byte, now time.Time) (Message, error) {
	var f statusFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return Message{}, fmt.Errorf("parseStatus: %w", err)
	}
	if f.Pressure == nil || f.Current == nil {
		return Message{}, fmt.Errorf("parseStatus: missing pressure or current")
	}
	return Message{Kind: KindStatus, Status: models.SensorSnapshot{
		Pressure:   *f.Pressure,
		Current:    *f.Current,
		Overfill:   f.Overfill != 0,
		SDCard:     f.SDCard,
		RelayMode:  f.RelayMode,
		Failsafe:   f.Failsafe != 0,
		Shutdown:   f.Shutdown != 0,
		ReceivedAt: now,
	}}, nil
}

func parseBackfill(b json.RawMessage) (Message, error) {
	var recs []backfillRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return Message{}, fmt.Errorf("parseBackfill: %w", err)
	}
	samples := make([]models.Sample, 0, len(recs))
	for _, r := range recs {
		s := models.Sample{
			Timestamp: r.Timestamp.Time,
			Pressure:  r.Pressure,
			Current:   r.Current,
			Mode:      r.Mode,
			Backfill:  true,
		}
		if r.Error != nil {
			s.Error = fmt.Sprint(r.Error)
		}
		samples = append(samples, s)
	}
	return Message{Kind: KindBackfill, Backfill: samples}, nil
}

func has(raw map[string]json.RawMessage, key string) bool {
	_, ok := raw[key]
	return ok
}

func hasAny(raw map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if has(raw, k) {
			return true
		}
	}
	return false
}

type dataFrame struct {
	Type string `json:"type"`
	Mode any    `json:"mode"`
}

type cmdFrame struct {
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
	Val  *int   `json:"val,omitempty"`
}

// EncodeMode frames a relay mode command.
func EncodeMode(m models.Mode) []byte {
	return encode(dataFrame{Type: "data", Mode: models.WireCodeFor(m)})
}

// EncodeShutdownRelay frames the symbolic shutdown or normal command.
func EncodeShutdownRelay(shutdown bool) []byte {
	code := models.WireNormal
	if shutdown {
		code = models.WireShutdown
	}
	return encode(dataFrame{Type: "data", Mode: code})
}

// EncodeCommand frames a device command such as cal, fast_poll or enable_failsafe.
func EncodeCommand(cmd string, val *int) []byte {
	return encode(cmdFrame{Type: "cmd", Cmd: cmd, Val: val})
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return append(b, '\n')
}
