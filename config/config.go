// Package config loads and validates the agent's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPingInterval   = 15 * time.Second
	DefaultModemInterval  = 15 * time.Second
	DefaultSelfIPInterval = 60 * time.Second
)

// PingTypes are the probe kinds a ping entry may request.
var PingTypes = map[string]bool{
	"icmp":    true,
	"tcp":     true,
	"dns-udp": true,
	"dns-tcp": true,
}

// SchemaError means the configuration file does not match the prescribed
// schema. It is fatal at startup, before any job is scheduled.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "config schema error: " + e.Reason
}

// Ping configures latency probes against one host. A single entry may
// fan out into several jobs, one per requested type.
type Ping struct {
	Name     string        `yaml:"name"`
	Host     string        `yaml:"host"`
	Types    []string      `yaml:"types"`
	Port     int           `yaml:"port"`
	Interval time.Duration `yaml:"interval"`
}

// Modem configures the cable-modem scrape job.
type Modem struct {
	Host     string        `yaml:"host"`
	Password string        `yaml:"password"`
	Interval time.Duration `yaml:"interval"`
}

// Config is the whole agent configuration.
type Config struct {
	Pings []Ping `yaml:"pings"`
	Modem *Modem `yaml:"modem"`
	IP    bool   `yaml:"ip"`
}

// Load reads, parses, defaults, and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML config bytes.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &SchemaError{Reason: err.Error()}
	}

	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills in unset intervals.
func ApplyDefaults(cfg *Config) {
	for i := range cfg.Pings {
		if cfg.Pings[i].Interval <= 0 {
			cfg.Pings[i].Interval = DefaultPingInterval
		}
	}
	if cfg.Modem != nil && cfg.Modem.Interval <= 0 {
		cfg.Modem.Interval = DefaultModemInterval
	}
}

// Validate checks required keys and value ranges.
func Validate(cfg Config) error {
	if len(cfg.Pings) == 0 && cfg.Modem == nil && !cfg.IP {
		return &SchemaError{Reason: "no pings, modem, or ip jobs configured"}
	}

	for i, ping := range cfg.Pings {
		if ping.Name == "" {
			return &SchemaError{Reason: fmt.Sprintf("pings[%d]: missing key \"name\"", i)}
		}
		if ping.Host == "" {
			return &SchemaError{Reason: fmt.Sprintf("pings[%d]: missing key \"host\"", i)}
		}
		if len(ping.Types) == 0 {
			return &SchemaError{Reason: fmt.Sprintf("pings[%d]: missing key \"types\"", i)}
		}
		for _, t := range ping.Types {
			if !PingTypes[t] {
				return &SchemaError{Reason: fmt.Sprintf("pings[%d]: unknown type %q", i, t)}
			}
			if t == "tcp" && (ping.Port < 1 || ping.Port > 65535) {
				return &SchemaError{Reason: fmt.Sprintf("pings[%d]: tcp type requires a valid \"port\"", i)}
			}
		}
	}

	if cfg.Modem != nil {
		if cfg.Modem.Host == "" {
			return &SchemaError{Reason: "modem: missing key \"host\""}
		}
		if cfg.Modem.Password == "" {
			return &SchemaError{Reason: "modem: missing key \"password\""}
		}
	}

	return nil
}
