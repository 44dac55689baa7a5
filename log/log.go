// Package log provides the planner's structured logger: slog with a
// handler that mirrors every record carrying a span-bearing context into
// that span as an event, so a trace of a planning run reads as one
// interleaved story of spans and log lines.
package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"log/slog"

	"github.com/naojsoft/qplan-core/observability"
)

var (
	mu     sync.Mutex
	logger = slog.New(NewSpanHandler(slog.NewTextHandler(os.Stdout, nil)))
)

// Logger returns the package's shared logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetLevel rebuilds the shared logger's text backend at the given
// minimum level. The span mirroring is unaffected.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(NewSpanHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// SpanHandler is a slog.Handler middleware: records pass through to the
// wrapped handler unchanged, and are additionally attached as events to
// the recording span on the record's context, if there is one.
type SpanHandler struct {
	next slog.Handler
}

// NewSpanHandler wraps next, collapsing nested SpanHandlers so a record
// is mirrored at most once.
func NewSpanHandler(next slog.Handler) *SpanHandler {
	if sh, ok := next.(*SpanHandler); ok {
		next = sh.next
	}
	return &SpanHandler{next: next}
}

// Enabled delegates to the wrapped handler.
func (h *SpanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle mirrors r into the active span, then delegates.
func (h *SpanHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if span := observability.SpanFromContext(ctx); span != nil && span.IsRecording() {
			attrs := []attribute.KeyValue{
				attribute.String("log.level", r.Level.String()),
			}
			var recordedErr error
			r.Attrs(func(a slog.Attr) bool {
				attrs = append(attrs, spanAttr(a.Key, a.Value))
				if a.Key == "error" && recordedErr == nil {
					if err, ok := a.Value.Any().(error); ok {
						recordedErr = err
					} else {
						recordedErr = fmt.Errorf("%v", a.Value.Any())
					}
				}
				return true
			})

			span.AddEvent(r.Message, observability.WithAttributes(attrs...))
			if r.Level >= slog.LevelError {
				if recordedErr == nil {
					recordedErr = fmt.Errorf("%s", r.Message)
				}
				span.RecordError(recordedErr)
			}
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *SpanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSpanHandler(h.next.WithAttrs(attrs))
}

// WithGroup implements slog.Handler.
func (h *SpanHandler) WithGroup(name string) slog.Handler {
	return NewSpanHandler(h.next.WithGroup(name))
}

// Unwrap returns the handler SpanHandler delegates to.
func (h *SpanHandler) Unwrap() slog.Handler { return h.next }

func spanAttr(key string, v slog.Value) attribute.KeyValue {
	switch v.Kind() {
	case slog.KindString:
		return attribute.String(key, v.String())
	case slog.KindBool:
		return attribute.Bool(key, v.Bool())
	case slog.KindInt64:
		return attribute.Int64(key, v.Int64())
	case slog.KindUint64:
		return attribute.Int64(key, int64(v.Uint64()))
	case slog.KindFloat64:
		return attribute.Float64(key, v.Float64())
	case slog.KindDuration:
		return attribute.String(key, v.Duration().String())
	case slog.KindTime:
		return attribute.String(key, v.Time().Format(time.RFC3339Nano))
	default:
		return attribute.String(key, fmt.Sprint(v.Any()))
	}
}
