package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent canary configuration stored as config.toml
// in the .canary/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	Specs   SpecsConfig   `toml:"specs"`
	Deploy  DeployConfig  `toml:"deploy"`
	Metrics MetricsConfig `toml:"metrics"`
	API     APIConfig     `toml:"api"`
	Client  ClientConfig  `toml:"client"`
	Events  EventsConfig  `toml:"events"`
}

// StorageConfig holds deployment record storage settings.
type StorageConfig struct {
	// SQLitePath is the deployment database path. Empty selects the
	// in-memory driver.
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// SpecsConfig holds agent specification store settings.
type SpecsConfig struct {
	// Dir is the directory holding agent spec YAML files.
	Dir string `toml:"dir,omitempty"`
}

// DeployConfig holds canary deployment defaults. Durations are given in
// Go duration syntax ("4h", "90s").
type DeployConfig struct {
	DefaultSplitPercent int    `toml:"default_split_percent,omitempty"`
	DefaultDuration     string `toml:"default_duration,omitempty"`
	MinSampleSize       int64  `toml:"min_sample_size,omitempty"`
	EvaluateCooldown    string `toml:"evaluate_cooldown,omitempty"`
}

// MetricsConfig holds settings for querying live agent metrics.
type MetricsConfig struct {
	// PrometheusURL is the base URL of the Prometheus server. Empty
	// selects the static in-memory accessor.
	PrometheusURL string `toml:"prometheus_url,omitempty"`

	// Window is the metrics window evaluations query over.
	Window string `toml:"window,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// canary API server.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// Duration parses the configured default deployment duration.
func (d DeployConfig) Duration() (time.Duration, error) {
	return parseDuration("deploy.default_duration", d.DefaultDuration)
}

// Cooldown parses the configured evaluate cooldown.
func (d DeployConfig) Cooldown() (time.Duration, error) {
	return parseDuration("deploy.evaluate_cooldown", d.EvaluateCooldown)
}

// WindowDuration parses the configured metrics window.
func (m MetricsConfig) WindowDuration() (time.Duration, error) {
	return parseDuration("metrics.window", m.Window)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}

	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"specs.dir": {
		get: func(c *Config) string { return c.Specs.Dir },
		set: func(c *Config, v string) error { c.Specs.Dir = v; return nil },
	},
	"deploy.default_split_percent": {
		get: func(c *Config) string {
			if c.Deploy.DefaultSplitPercent == 0 {
				return ""
			}
			return strconv.Itoa(c.Deploy.DefaultSplitPercent)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for deploy.default_split_percent: %w", err)
			}
			c.Deploy.DefaultSplitPercent = n
			return nil
		},
	},
	"deploy.default_duration": {
		get: func(c *Config) string { return c.Deploy.DefaultDuration },
		set: func(c *Config, v string) error {
			if _, err := parseDuration("deploy.default_duration", v); err != nil {
				return err
			}
			c.Deploy.DefaultDuration = v
			return nil
		},
	},
	"deploy.min_sample_size": {
		get: func(c *Config) string {
			if c.Deploy.MinSampleSize == 0 {
				return ""
			}
			return strconv.FormatInt(c.Deploy.MinSampleSize, 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for deploy.min_sample_size: %w", err)
			}
			c.Deploy.MinSampleSize = n
			return nil
		},
	},
	"deploy.evaluate_cooldown": {
		get: func(c *Config) string { return c.Deploy.EvaluateCooldown },
		set: func(c *Config, v string) error {
			if _, err := parseDuration("deploy.evaluate_cooldown", v); err != nil {
				return err
			}
			c.Deploy.EvaluateCooldown = v
			return nil
		},
	},
	"metrics.prometheus_url": {
		get: func(c *Config) string { return c.Metrics.PrometheusURL },
		set: func(c *Config, v string) error { c.Metrics.PrometheusURL = v; return nil },
	},
	"metrics.window": {
		get: func(c *Config) string { return c.Metrics.Window },
		set: func(c *Config, v string) error {
			if _, err := parseDuration("metrics.window", v); err != nil {
				return err
			}
			c.Metrics.Window = v
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for events.enabled: %w", err)
			}
			c.Events.Enabled = b
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
