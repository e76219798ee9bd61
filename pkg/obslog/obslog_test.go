package obslog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithTracingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TracingEnabled = false

	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.Logger)
	assert.NotNil(t, p.Tracer)

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewDefaultsAppliedOnNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p.Logger)
}
