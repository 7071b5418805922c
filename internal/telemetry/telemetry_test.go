package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		tel, err := New(context.Background(), nil)
		require.NoError(t, err)
		require.NotNil(t, tel)
		assert.False(t, tel.IsEnabled())
		assert.False(t, tel.Degraded())
	})

	t.Run("disabled config is a no-op instance", func(t *testing.T) {
		tel, err := New(context.Background(), &Config{Enabled: false})
		require.NoError(t, err)
		assert.False(t, tel.IsEnabled())

		// Providers fall back to the globals.
		assert.NotNil(t, tel.Tracer("test"))
		assert.NotNil(t, tel.Meter("test"))
		assert.NoError(t, tel.Shutdown(context.Background()))
		assert.NoError(t, tel.ForceFlush(context.Background()))
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		cfg.SampleRate = 2.0

		_, err := New(context.Background(), cfg)
		assert.Error(t, err)
	})
}

func TestNilReceiverIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
}
