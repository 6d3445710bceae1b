package config

import (
	"time"

	"github.com/spf13/viper"
)

// alarmDefaults holds thresholds and confirmation durations per condition kind.
var alarmDefaults = map[string]AlarmConfig{
	"pressure_sensor":   {Enabled: true, Threshold: -40.0, Duration: 10 * time.Second},
	"zero_pressure":     {Enabled: true, Threshold: 0.15, Duration: time.Hour},
	"variable_pressure": {Enabled: true, Threshold: 0.20, Duration: time.Hour},
	"over_pressure":     {Enabled: true, Threshold: 2.0, Duration: 30 * time.Minute},
	"under_pressure":    {Enabled: true, Threshold: -6.0, Duration: 30 * time.Minute},
	"overfill":          {Enabled: true, Latch: 2 * time.Hour},
	"high_current":      {Enabled: true, Threshold: 20.0, Duration: 2 * time.Second},
	"low_current":       {Enabled: true, Threshold: 2.0, Duration: 35 * time.Second},
	"equipment_fault":   {Enabled: true},
	"digital_storage":   {Enabled: true},
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "vapor.db")

	v.SetDefault("samples.path", "data/samples")
	v.SetDefault("samples.retention", 7*24*time.Hour)
	v.SetDefault("samples.every", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/vapor.log")
	v.SetDefault("log.max_size_mb", 15)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("serial.device", "/dev/ttyS0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.tick", 100*time.Millisecond)
	v.SetDefault("serial.freshness", 3*time.Second)
	v.SetDefault("serial.read_timeout", 20*time.Millisecond)

	for kind, a := range alarmDefaults {
		v.SetDefault("alarms."+kind+".enabled", a.Enabled)
		v.SetDefault("alarms."+kind+".threshold", a.Threshold)
		v.SetDefault("alarms."+kind+".duration", a.Duration)
		v.SetDefault("alarms."+kind+".latch", a.Latch)
	}

	v.SetDefault("engine.alarm_tick", time.Second)
	v.SetDefault("shutdown.tick", 5*time.Minute)
	v.SetDefault("profile.name", "CS8")

	v.SetDefault("faults.purge_check_after", 35*time.Second)
	v.SetDefault("faults.purge_min_current", 2.0)
	v.SetDefault("faults.high_current", 20.0)
	v.SetDefault("faults.high_current_hold", 2*time.Second)
	v.SetDefault("faults.gm_fault_count", 3)
	v.SetDefault("faults.vac_pump_fault_count", 10)

	v.SetDefault("auth.username", "operator")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "vapor.events")

	v.SetDefault("metrics.enabled", true)
}
