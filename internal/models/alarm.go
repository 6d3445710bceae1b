package models

import "time"

// AlarmKind names an alarm condition. The set is closed.
type AlarmKind string

const (
	AlarmPressureSensor AlarmKind = "pressure_sensor"
	AlarmZeroPressure   AlarmKind = "zero_pressure"
	AlarmVariablePress  AlarmKind = "variable_pressure"
	AlarmOverPressure   AlarmKind = "over_pressure"
	AlarmUnderPressure  AlarmKind = "under_pressure"
	AlarmOverfill       AlarmKind = "overfill"
	AlarmHighCurrent    AlarmKind = "high_current"
	AlarmLowCurrent     AlarmKind = "low_current"
	AlarmEquipmentFault AlarmKind = "equipment_fault"
	AlarmDigitalStorage AlarmKind = "digital_storage"
)

// AllAlarmKinds lists every condition kind in evaluation order.
var AllAlarmKinds = []AlarmKind{
	AlarmPressureSensor,
	AlarmZeroPressure,
	AlarmVariablePress,
	AlarmOverPressure,
	AlarmUnderPressure,
	AlarmOverfill,
	AlarmHighCurrent,
	AlarmLowCurrent,
	AlarmEquipmentFault,
	AlarmDigitalStorage,
}

// AlarmState is the confirmation state of one alarm.
type AlarmState string

const (
	AlarmIdle       AlarmState = "idle"
	AlarmConfirming AlarmState = "confirming"
	AlarmActive     AlarmState = "active"
)

// Alarm is a read-only view of an alarm's state.
type Alarm struct {
	Kind         AlarmKind  `json:"kind"`
	State        AlarmState `json:"state"`
	Since        time.Time  `json:"since,omitempty"`
	Acknowledged bool       `json:"acknowledged"`
	Frozen       bool       `json:"frozen,omitempty"`
}

// AlarmTransition is published whenever an alarm changes state.
type AlarmTransition struct {
	Kind AlarmKind  `json:"kind"`
	From AlarmState `json:"from"`
	To   AlarmState `json:"to"`
	At   time.Time  `json:"at"`
}
