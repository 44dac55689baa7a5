package observability

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
)

// Severity grades how much a fault should alarm an operator watching a
// planning service.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Subsystem names the part of the planner a fault came from, so traces
// and logs can be filtered by where in the pipeline things went wrong.
type Subsystem string

const (
	SubsystemIngest      Subsystem = "ingest"
	SubsystemEphemeris   Subsystem = "ephemeris"
	SubsystemScheduling  Subsystem = "scheduling"
	SubsystemPersistence Subsystem = "persistence"
	SubsystemTransport   Subsystem = "transport"
	SubsystemConfig      Subsystem = "config"
	SubsystemInternal    Subsystem = "internal"
)

// Fault wraps an error with the planner-level context a span event and a
// structured log line both want: which subsystem, which operation, how
// bad, and whether retrying could help (a Redis hiccup can be retried; a
// slot-split overrun cannot).
type Fault struct {
	Err       error
	Subsystem Subsystem
	Severity  Severity
	Operation string
	Retryable bool
	Attrs     map[string]any

	Time  time.Time
	Stack string
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.Subsystem, f.Operation, f.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (f *Fault) Unwrap() error {
	return f.Err
}

// FaultOption customizes a Fault under construction in Record.
type FaultOption func(*Fault)

// AsSeverity overrides the default medium severity.
func AsSeverity(s Severity) FaultOption {
	return func(f *Fault) { f.Severity = s }
}

// Retryable marks the fault as transient.
func Retryable() FaultOption {
	return func(f *Fault) { f.Retryable = true }
}

// WithAttr attaches one extra key/value to the fault's span event and
// log line.
func WithAttr(key string, value any) FaultOption {
	return func(f *Fault) {
		if f.Attrs == nil {
			f.Attrs = make(map[string]any)
		}
		f.Attrs[key] = value
	}
}

// Record attaches a fault to the span carried by ctx (as a span event
// plus error status for high/critical severities) and emits one
// structured log line. It returns the constructed *Fault so the caller
// can propagate it in place of the raw error.
func Record(ctx context.Context, err error, sub Subsystem, op string, opts ...FaultOption) *Fault {
	if err == nil {
		return nil
	}
	f := &Fault{
		Err:       err,
		Subsystem: sub,
		Severity:  SeverityMedium,
		Operation: op,
		Time:      time.Now(),
		Stack:     captureStack(1),
	}
	for _, opt := range opts {
		opt(f)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		attrs := []attribute.KeyValue{
			attribute.String("fault.subsystem", string(f.Subsystem)),
			attribute.String("fault.severity", string(f.Severity)),
			attribute.String("fault.operation", f.Operation),
			attribute.Bool("fault.retryable", f.Retryable),
		}
		for k, v := range f.Attrs {
			attrs = append(attrs, attribute.String("fault."+k, fmt.Sprint(v)))
		}
		span.AddEvent("fault", trace.WithAttributes(attrs...))
		span.RecordError(f.Err)
		if f.Severity == SeverityHigh || f.Severity == SeverityCritical {
			span.SetStatus(codes.Error, f.Err.Error())
		}
	}

	logArgs := []any{
		"subsystem", string(f.Subsystem),
		"operation", f.Operation,
		"severity", string(f.Severity),
		"retryable", f.Retryable,
		"error", f.Err,
	}
	for k, v := range f.Attrs {
		logArgs = append(logArgs, k, v)
	}
	if f.Severity == SeverityLow {
		slog.WarnContext(ctx, "fault", logArgs...)
	} else {
		slog.ErrorContext(ctx, "fault", logArgs...)
	}

	return f
}

// Event mirrors a notable non-error happening (a night completing, a
// cache population finishing) into the active span and the log in one
// call.
func Event(ctx context.Context, name string, attrs map[string]any) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
		for k, v := range attrs {
			otelAttrs = append(otelAttrs, attribute.String(k, fmt.Sprint(v)))
		}
		span.AddEvent(name, trace.WithAttributes(otelAttrs...))
	}
	logArgs := make([]any, 0, 2*len(attrs))
	for k, v := range attrs {
		logArgs = append(logArgs, k, v)
	}
	slog.InfoContext(ctx, name, logArgs...)
}

// captureStack renders the caller's stack, skipping skip frames plus
// this function's own.
func captureStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
