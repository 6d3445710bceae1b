package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full supervisor configuration.
type Config struct {
	Port     string                 `mapstructure:"port"`
	DB       DBConfig               `mapstructure:"db"`
	Samples  SamplesConfig          `mapstructure:"samples"`
	Log      LogConfig              `mapstructure:"log"`
	Serial   SerialConfig           `mapstructure:"serial"`
	Alarms   map[string]AlarmConfig `mapstructure:"alarms" validate:"dive"`
	Engine   EngineConfig           `mapstructure:"engine"`
	Profile  ProfileConfig          `mapstructure:"profile"`
	Faults   FaultConfig            `mapstructure:"faults"`
	Cycles   map[string]CycleConfig `mapstructure:"cycles" validate:"dive"`
	Debug    DebugConfig            `mapstructure:"debug"`
	Auth     AuthConfig             `mapstructure:"auth"`
	NATS     NATSConfig             `mapstructure:"nats"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
	Shutdown ShutdownConfig         `mapstructure:"shutdown"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type SamplesConfig struct {
	Path      string        `mapstructure:"path"`
	InMemory  bool          `mapstructure:"in_memory"`
	Retention time.Duration `mapstructure:"retention"`
	Every     time.Duration `mapstructure:"every" validate:"gt=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type SerialConfig struct {
	Device      string        `mapstructure:"device" validate:"required"`
	Baud        int           `mapstructure:"baud" validate:"gt=0"`
	Tick        time.Duration `mapstructure:"tick" validate:"gt=0"`
	Freshness   time.Duration `mapstructure:"freshness" validate:"gt=0"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
}

// AlarmConfig configures one condition kind.
type AlarmConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Threshold float64       `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration" validate:"gte=0"`
	Latch     time.Duration `mapstructure:"latch" validate:"gte=0"`
}

type EngineConfig struct {
	AlarmTick time.Duration `mapstructure:"alarm_tick" validate:"gt=0"`
}

type ShutdownConfig struct {
	Tick time.Duration `mapstructure:"tick" validate:"gt=0"`
}

type ProfileConfig struct {
	Name string `mapstructure:"name" validate:"oneof=CS2 CS8 CS9 CS12"`
}

type FaultConfig struct {
	PurgeCheckAfter   time.Duration `mapstructure:"purge_check_after" validate:"gt=0"`
	PurgeMinCurrent   float64       `mapstructure:"purge_min_current"`
	HighCurrent       float64       `mapstructure:"high_current" validate:"gt=0"`
	HighCurrentHold   time.Duration `mapstructure:"high_current_hold" validate:"gt=0"`
	GMFaultCount      int           `mapstructure:"gm_fault_count" validate:"gt=0"`
	VacPumpFaultCount int           `mapstructure:"vac_pump_fault_count" validate:"gt=0"`
}

// StepConfig is either a single mode step or a repeated block of nested steps.
type StepConfig struct {
	Mode     string        `mapstructure:"mode"`
	Duration time.Duration `mapstructure:"duration"`
	Repeat   int           `mapstructure:"repeat" validate:"gte=0"`
	Steps    []StepConfig  `mapstructure:"steps" validate:"dive"`
}

type CycleConfig struct {
	Manual bool         `mapstructure:"manual"`
	Steps  []StepConfig `mapstructure:"steps" validate:"required,min=1,dive"`
}

type DebugConfig struct {
	Enabled bool                   `mapstructure:"enabled"`
	Cycles  map[string]CycleConfig `mapstructure:"cycles" validate:"dive"`
}

type AuthConfig struct {
	Username     string        `mapstructure:"username" validate:"required"`
	JWTSecret    string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	PasswordHash string        `mapstructure:"password_hash"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Subject string `mapstructure:"subject" validate:"required_if=Enabled true"`
	// Site tags every published event.
	Site string `mapstructure:"site"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load unmarshals v into a Config on top of the defaults and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("VAPOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}
