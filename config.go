package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/dual_signal_sim/hooks"
)

// Config is the process configuration: the HTTP listen address, log level,
// and the defaults applied when an initialize request leaves a field unset.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`

	Scenario          string        `mapstructure:"scenario"`
	ScenarioFile      string        `mapstructure:"scenario_file"`
	AdaptivePolicy    string        `mapstructure:"adaptive_policy"`
	BaselinePolicy    string        `mapstructure:"baseline_policy"`
	Plugins           []string      `mapstructure:"plugins"`
	Seed              int64         `mapstructure:"seed"`
	MaxSteps          int           `mapstructure:"max_steps"`
	VehicleCount      int           `mapstructure:"vehicle_count"`
	EmergencyInterval int           `mapstructure:"emergency_interval"`
	AdaptiveInterval  int           `mapstructure:"adaptive_interval"`
	BaselineInterval  int           `mapstructure:"baseline_interval"`
	YellowDuration    int           `mapstructure:"yellow_duration"`
	EmergencyYellow   int           `mapstructure:"emergency_yellow"`
	EmergencyTimeout  int           `mapstructure:"emergency_timeout"`
	DetectionRadius   float64       `mapstructure:"detection_radius"`
	StepDelay         time.Duration `mapstructure:"step_delay"`
}

// DefaultBaselineInterval is the fixed-cycle green duration in steps. The
// baseline deliberately re-decides less often than the adaptive twin.
const DefaultBaselineInterval = 30

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("scenario", "single")
	v.SetDefault("scenario_file", "")
	v.SetDefault("adaptive_policy", "adaptive")
	v.SetDefault("baseline_policy", "fixed")
	v.SetDefault("plugins", []string{"progress"})
	v.SetDefault("seed", 42)
	v.SetDefault("max_steps", 5400)
	v.SetDefault("vehicle_count", 1000)
	v.SetDefault("emergency_interval", DefaultEmergencyInterval)
	v.SetDefault("adaptive_interval", DefaultDecisionInterval)
	v.SetDefault("baseline_interval", DefaultBaselineInterval)
	v.SetDefault("yellow_duration", DefaultYellowDuration)
	v.SetDefault("emergency_yellow", DefaultEmergencyYellowDuration)
	v.SetDefault("emergency_timeout", DefaultEmergencyTimeout)
	v.SetDefault("detection_radius", DefaultDetectionRadius)
	v.SetDefault("step_delay", time.Duration(0))
}

// LoadConfig reads configuration from an optional file plus TWINSIM_*
// environment variables, with defaults for everything left unset. An empty
// path skips the file and is not an error; a named file must exist.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setConfigDefaults(v)
	v.SetEnvPrefix("TWINSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a runnable session.
func (c Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.VehicleCount < 0 {
		return fmt.Errorf("vehicle_count must be non-negative, got %d", c.VehicleCount)
	}
	if c.YellowDuration <= 0 || c.EmergencyYellow <= 0 {
		return fmt.Errorf("yellow durations must be positive")
	}
	if c.AdaptiveInterval <= 0 || c.BaselineInterval <= 0 {
		return fmt.Errorf("decision intervals must be positive")
	}
	return nil
}

// controllerConfig derives the per-controller timing parameters for one twin.
func (c Config) controllerConfig(decisionInterval int, broker *hooks.Broker) ControllerConfig {
	return ControllerConfig{
		DecisionInterval:        decisionInterval,
		YellowDuration:          c.YellowDuration,
		EmergencyYellowDuration: c.EmergencyYellow,
		EmergencyTimeout:        c.EmergencyTimeout,
		DetectionRadius:         c.DetectionRadius,
		PolicyTimeout:           DefaultPolicyTimeout,
		Broker:                  broker,
	}
}
