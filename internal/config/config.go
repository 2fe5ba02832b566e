// Package config provides configuration helpers for go-framebridge commands.
//
// Settings come from defaults, then an optional YAML file, then
// environment variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-framebridge/pkg/capture"
	"gopkg.in/yaml.v3"
)

// Default server configuration.
const (
	DefaultAddr     = ":8090"
	DefaultLogLevel = "info"
)

// Environment variables read by Load.
const (
	EnvAddr       = "FRAMEBRIDGE_ADDR"
	EnvBackend    = "FRAMEBRIDGE_BACKEND"
	EnvScanLimit = "FRAMEBRIDGE_SCAN_LIMIT"
	EnvWidth      = "FRAMEBRIDGE_WIDTH"
	EnvHeight     = "FRAMEBRIDGE_HEIGHT"
	EnvLogLevel   = "LOG_LEVEL"
)

// Config holds command configuration.
type Config struct {
	// Addr is the listen address of the HTTP transport.
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Capture configures the capture backend.
	Capture capture.Config `yaml:"capture"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     DefaultAddr,
		LogLevel: DefaultLogLevel,
		Capture:  capture.DefaultConfig(),
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is not empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("invalid config: %v", errs)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Capture.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	ints := []struct {
		env string
		dst *int
	}{
		{EnvScanLimit, &c.Capture.ScanLimit},
		{EnvWidth, &c.Capture.Width},
		{EnvHeight, &c.Capture.Height},
	}
	for _, e := range ints {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks the configuration. Returns a list of validation errors,
// or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Addr == "" {
		errors = append(errors, "addr is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, "log_level must be debug, info, warn, or error")
	}
	errors = append(errors, c.Capture.Validate()...)

	return errors
}
