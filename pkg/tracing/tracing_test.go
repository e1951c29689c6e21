package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// catalogConfig returns an enabled config pointed at a non-routable endpoint,
// so the SDK initializes without a collector (export is async and batched).
func catalogConfig(sampleRate float64) Config {
	return Config{
		ServiceName:    "catalog",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     sampleRate,
		Enabled:        true,
	}
}

func restoreProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitTracer_Disabled(t *testing.T) {
	restoreProvider(t)

	cfg := DefaultConfig("catalog")
	cfg.Enabled = false

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown, "shutdown must be callable even when disabled")

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled_SetsGlobalProvider(t *testing.T) {
	restoreProvider(t)

	shutdown, err := InitTracer(context.Background(), catalogConfig(1.0))
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "expected an SDK tracer provider, got %T", otel.GetTracerProvider())

	// Shutdown may fail flushing to the unreachable endpoint; that is fine.
	_ = shutdown(context.Background())
}

func TestInitTracer_SampleRates(t *testing.T) {
	for _, rate := range []float64{0.0, 0.5, 1.0} {
		restoreProvider(t)

		shutdown, err := InitTracer(context.Background(), catalogConfig(rate))
		require.NoError(t, err, "sample rate %f", rate)
		_ = shutdown(context.Background())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("catalog")

	assert.Equal(t, "catalog", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestTracer_UsableWithoutSDK(t *testing.T) {
	tracer := Tracer("catalog/repository")
	require.NotNil(t, tracer)

	// Without a configured provider this yields a no-op span; starting and
	// ending it must not panic.
	_, span := tracer.Start(context.Background(), "db.ListProducts")
	span.End()
}
