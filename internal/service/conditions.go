package service

import (
	"math"
	"time"

	"vapor_recovery/internal/config"
	"vapor_recovery/internal/models"
)

// Verdict is the tri-state outcome of a condition check.
type Verdict int

const (
	VerdictFalse Verdict = iota
	VerdictTrue
	VerdictUnknown
)

func verdictOf(b bool) Verdict {
	if b {
		return VerdictTrue
	}
	return VerdictFalse
}

// EvalInput is everything a condition may look at during one tick.
type EvalInput struct {
	Snapshot models.SensorSnapshot
	Mode     models.Mode
	Faults   FaultCounts
	Now      time.Time
}

// Condition is one configured alarm condition. Kind selects the arm of Check.
type Condition struct {
	Kind      models.AlarmKind
	Threshold float64
	Duration  time.Duration
	Latch     time.Duration

	// FaultLimit is the vacuum-pump failure count that trips equipment_fault.
	FaultLimit int

	refPressure  float64
	hasRef       bool
	lastOverfill time.Time
}

// NewConditions builds one Condition per enabled kind from configuration.
func NewConditions(alarms map[string]config.AlarmConfig, faults config.FaultConfig) []*Condition {
	var out []*Condition
	for _, kind := range models.AllAlarmKinds {
		ac, ok := alarms[string(kind)]
		if !ok || !ac.Enabled {
			continue
		}
		out = append(out, &Condition{
			Kind:       kind,
			Threshold:  ac.Threshold,
			Duration:   ac.Duration,
			Latch:      ac.Latch,
			FaultLimit: faults.VacPumpFaultCount,
		})
	}
	return out
}

// dependsOnSnapshot reports whether the condition reads sensor data.
func (c *Condition) dependsOnSnapshot() bool {
	return c.Kind != models.AlarmEquipmentFault
}

// Check evaluates the condition. A stale or missing snapshot yields VerdictUnknown
// for every condition that reads it.
func (c *Condition) Check(in EvalInput) Verdict {
	if c.dependsOnSnapshot() && (in.Snapshot.Stale || !in.Snapshot.Valid()) {
		return VerdictUnknown
	}
	s := in.Snapshot

	switch c.Kind {
	case models.AlarmPressureSensor:
		return verdictOf(s.Pressure < c.Threshold)
	case models.AlarmZeroPressure:
		return verdictOf(math.Abs(s.Pressure) <= math.Abs(c.Threshold))
	case models.AlarmVariablePress:
		// true while pressure stays within the band around the reference point
		if !c.hasRef {
			c.refPressure, c.hasRef = s.Pressure, true
			return VerdictFalse
		}
		if math.Abs(c.refPressure-s.Pressure) <= math.Abs(c.Threshold) {
			return VerdictTrue
		}
		c.refPressure = s.Pressure
		return VerdictFalse
	case models.AlarmOverPressure:
		return verdictOf(s.Pressure >= c.Threshold)
	case models.AlarmUnderPressure:
		return verdictOf(s.Pressure <= c.Threshold)
	case models.AlarmOverfill:
		if s.Overfill {
			c.lastOverfill = in.Now
			return VerdictTrue
		}
		return verdictOf(!c.lastOverfill.IsZero() && in.Now.Sub(c.lastOverfill) < c.Latch)
	case models.AlarmHighCurrent:
		return verdictOf(s.Current >= c.Threshold)
	case models.AlarmLowCurrent:
		return verdictOf(models.RelayVectorFor(in.Mode).Motor && s.Current < c.Threshold)
	case models.AlarmDigitalStorage:
		return verdictOf(s.SDCard != "" && s.SDCard != "OK")
	case models.AlarmEquipmentFault:
		return verdictOf(in.Faults.Latched || (c.FaultLimit > 0 && in.Faults.VacPumpFailures >= c.FaultLimit))
	default:
		return VerdictFalse
	}
}
