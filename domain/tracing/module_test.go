package tracing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/emergent-company/testmind/internal/config"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	p, err := NewTracerProvider(&config.Config{}, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, p.SDK)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
