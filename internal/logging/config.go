package logging

import "fmt"

// Config holds logging configuration.
type Config struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	ServiceName string `koanf:"service_name"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "ragd",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (expected json or console)", c.Format)
	}
	return nil
}
