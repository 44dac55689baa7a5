package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupStdout(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, p)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	tr := p.Tracer("test")
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "unit-span")
	span.End()
}

func TestDefaultLazilyInitializes(t *testing.T) {
	p := Default()
	require.NotNil(t, p)

	// A second call returns the same installed provider.
	assert.Same(t, p, Default())
}

func TestTracerFromDefault(t *testing.T) {
	tr := Tracer("ephemeris")
	require.NotNil(t, tr)

	ctx, span := tr.Start(context.Background(), "populate")
	defer span.End()
	assert.NotNil(t, SpanFromContext(ctx))
}

func TestStartSpanAttachesToContext(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "fill-night")
	defer span.End()

	got := SpanFromContext(ctx)
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanContext().SpanID())
}

func TestShutdownWithoutMeterProvider(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
