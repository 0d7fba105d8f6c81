package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 10, cfg.Pipeline.RegionPadding)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
	assert.Equal(t, int64(50), cfg.Server.MaxUploadMB)
	assert.Equal(t, 30, cfg.Server.TimeoutSec)
	assert.Equal(t, "json", cfg.Output.Format)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"log level case-insensitive", func(c *Config) { c.LogLevel = "DEBUG" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, false},
		{"negative padding", func(c *Config) { c.Pipeline.RegionPadding = -1 }, false},
		{"zero padding allowed", func(c *Config) { c.Pipeline.RegionPadding = 0 }, true},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, false},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, false},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, false},
		{"text format allowed", func(c *Config) { c.Output.Format = "text" }, true},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
