package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/ragd/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled) // Disabled by default for installs without an OTLP collector
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Equal(t, "ragd", cfg.ServiceName)
	assert.Equal(t, "0.1.0", cfg.ServiceVersion)
	assert.True(t, cfg.Insecure) // Insecure by default for local dev
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestConfigValidate(t *testing.T) {
	valid := func(mutate func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid default config",
			config: NewDefaultConfig(),
		},
		{
			name:   "disabled config skips validation",
			config: &Config{Enabled: false},
		},
		{
			name:   "enabled with local endpoint",
			config: valid(func(c *Config) {}),
		},
		{
			name: "remote endpoint with TLS",
			config: valid(func(c *Config) {
				c.Endpoint = "collector.prod:4317"
				c.Insecure = false
			}),
		},
		{
			name:    "missing endpoint",
			config:  valid(func(c *Config) { c.Endpoint = "" }),
			wantErr: true,
			errMsg:  "endpoint is required",
		},
		{
			name:    "missing service name",
			config:  valid(func(c *Config) { c.ServiceName = "" }),
			wantErr: true,
			errMsg:  "service_name is required",
		},
		{
			name:    "unknown protocol",
			config:  valid(func(c *Config) { c.Protocol = "thrift" }),
			wantErr: true,
			errMsg:  "protocol must be grpc or http/protobuf",
		},
		{
			name:    "insecure remote endpoint",
			config:  valid(func(c *Config) { c.Endpoint = "collector.prod:4317" }),
			wantErr: true,
			errMsg:  "insecure connections to remote endpoints",
		},
		{
			name:    "sample rate too low",
			config:  valid(func(c *Config) { c.SampleRate = -0.1 }),
			wantErr: true,
			errMsg:  "sample_rate must be between 0 and 1",
		},
		{
			name:    "sample rate too high",
			config:  valid(func(c *Config) { c.SampleRate = 1.1 }),
			wantErr: true,
			errMsg:  "sample_rate must be between 0 and 1",
		},
		{
			name:    "invalid export interval",
			config:  valid(func(c *Config) { c.ExportInterval = config.Duration(0) }),
			wantErr: true,
			errMsg:  "export_interval must be positive",
		},
		{
			name:    "invalid shutdown timeout",
			config:  valid(func(c *Config) { c.ShutdownTimeout = config.Duration(0) }),
			wantErr: true,
			errMsg:  "shutdown_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorContains(t, err, tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		local    bool
	}{
		{endpoint: "localhost:4317", local: true},
		{endpoint: "127.0.0.1:4317", local: true},
		{endpoint: "127.0.0.53:4317", local: true},
		{endpoint: "http://localhost:4318", local: true},
		{endpoint: "[::1]:4317", local: true},
		{endpoint: "collector.prod:4317", local: false},
		{endpoint: "10.0.0.5:4317", local: false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.local, cfg.isLocalEndpoint())
		})
	}
}
