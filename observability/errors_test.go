package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Record(context.Background(), nil, SubsystemEphemeris, "calc"))
}

func TestRecordBuildsFault(t *testing.T) {
	base := errors.New("redis unreachable")
	f := Record(context.Background(), base, SubsystemPersistence, "fetch-executed",
		AsSeverity(SeverityLow), Retryable(), WithAttr("addr", "localhost:6379"))

	require.NotNil(t, f)
	assert.Equal(t, SubsystemPersistence, f.Subsystem)
	assert.Equal(t, SeverityLow, f.Severity)
	assert.True(t, f.Retryable)
	assert.Equal(t, "localhost:6379", f.Attrs["addr"])
	assert.False(t, f.Time.IsZero())
	assert.NotEmpty(t, f.Stack)
}

func TestFaultErrorAndUnwrap(t *testing.T) {
	base := errors.New("split point precedes slot start")
	f := Record(context.Background(), base, SubsystemScheduling, "split")

	assert.Contains(t, f.Error(), "scheduling/split")
	assert.True(t, errors.Is(f, base))
}

func TestRecordDefaultsToMediumSeverity(t *testing.T) {
	f := Record(context.Background(), errors.New("boom"), SubsystemInternal, "op")
	assert.Equal(t, SeverityMedium, f.Severity)
}

func TestRecordOntoRecordingSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "fault-host")
	defer span.End()

	f := Record(ctx, errors.New("object never rises"), SubsystemEphemeris, "observable",
		AsSeverity(SeverityHigh), WithAttr("target", "NGC 253"))
	require.NotNil(t, f)
	assert.Equal(t, SeverityHigh, f.Severity)
}

func TestEventDoesNotPanicWithoutSpan(t *testing.T) {
	Event(context.Background(), "night completed", map[string]any{"night": 0, "scheduled": 12})
}
