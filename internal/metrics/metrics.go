package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsSent counts frames written to the microcontroller by kind (mode, shutdown, cmd).
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vapor_serial_commands_sent_total",
		Help: "Command frames written to the serial link",
	}, []string{"kind"})

	// SerialWriteErrors counts failed writes; they are retried on the next tick.
	SerialWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vapor_serial_write_errors_total",
		Help: "Failed writes to the serial link",
	})

	// LinesDiscarded counts inbound lines that could not be parsed.
	LinesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vapor_serial_lines_discarded_total",
		Help: "Malformed inbound lines dropped by the transport",
	})

	SnapshotStale = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vapor_snapshot_stale",
		Help: "1 when the sensor snapshot is older than the freshness window",
	})

	Pressure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vapor_pressure_iwc",
		Help: "Last reported pressure",
	})

	Current = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vapor_motor_current_amps",
		Help: "Last reported motor current",
	})

	// ModeRevision mirrors the mode register revision.
	ModeRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vapor_mode_revision",
		Help: "Revision of the commanded mode register",
	})

	AlarmActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vapor_alarm_active",
		Help: "1 while an alarm kind is active",
	}, []string{"kind"})

	AlarmTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vapor_alarm_transitions_total",
		Help: "Alarm state transitions",
	}, []string{"kind", "to"})

	ShutdownStage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vapor_shutdown_stage",
		Help: "Escalation stage reached per category (0 none .. 5 shutdown)",
	}, []string{"category"})

	CyclesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vapor_cycles_started_total",
		Help: "Cycle executions started",
	}, []string{"name", "origin"})

	CycleStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vapor_cycle_step_seconds",
		Help:    "Time actually spent in each cycle step",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 600, 1800, 7200},
	}, []string{"mode"})
)
