// Package config defines the application configuration and its loader.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration for the CLI and server.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Verbose  bool   `mapstructure:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Server   ServerConfig   `mapstructure:"server"`
	Output   OutputConfig   `mapstructure:"output"`
}

// PipelineConfig tunes the detection cascade.
type PipelineConfig struct {
	// RegionPadding is the margin in pixels around the exported symbol crop.
	RegionPadding int `mapstructure:"region_padding"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSOrigin  string `mapstructure:"cors_origin"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
	TimeoutSec  int    `mapstructure:"timeout_sec"`
}

// OutputConfig holds CLI output settings.
type OutputConfig struct {
	Format string `mapstructure:"format"` // json or text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Pipeline: PipelineConfig{
			RegionPadding: 10,
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8080,
			CORSOrigin:  "*",
			MaxUploadMB: 50,
			TimeoutSec:  30,
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (expected debug, info, warn or error)", c.LogLevel)
	}

	if c.Pipeline.RegionPadding < 0 {
		return fmt.Errorf("pipeline.region_padding must be >= 0, got %d", c.Pipeline.RegionPadding)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("server.timeout_sec must be > 0, got %d", c.Server.TimeoutSec)
	}

	switch c.Output.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid output.format %q (expected json or text)", c.Output.Format)
	}

	return nil
}
