package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"go.opentelemetry.io/otel/trace"
)

// CloudWatchConfig selects the destination log group/stream for shipped
// logs. A nil *CloudWatchConfig (or empty LogGroup) disables shipping.
type CloudWatchConfig struct {
	Client    *cloudwatchlogs.Client
	LogGroup  string
	LogStream string
}

// InitLogger builds the process-wide structured logger. Every record is
// JSON on stderr and carries the active trace_id/span_id when the logging
// call's context holds one; cwCfg optionally ships a second copy to
// CloudWatch Logs.
func InitLogger(level string, cwCfg *CloudWatchConfig) *slog.Logger {
	stderrHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	var handler slog.Handler = &traceHandler{inner: stderrHandler}

	if cwCfg != nil && cwCfg.LogGroup != "" && cwCfg.LogStream != "" {
		cw := newCloudWatchHandler(cwCfg)
		handler = &multiHandler{
			handlers: []slog.Handler{
				&traceHandler{inner: stderrHandler},
				&traceHandler{inner: cw},
			},
		}
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// cloudWatchHandler batches PutLogEvents calls, flushing every 25 events or
// 5 seconds, whichever comes first.
type cloudWatchHandler struct {
	client    *cloudwatchlogs.Client
	logGroup  string
	logStream string
	level     slog.Level

	mu     sync.Mutex
	buffer []cwltypes.InputLogEvent
	timer  *time.Timer
}

func newCloudWatchHandler(cfg *CloudWatchConfig) *cloudWatchHandler {
	return &cloudWatchHandler{
		client:    cfg.Client,
		logGroup:  cfg.LogGroup,
		logStream: cfg.LogStream,
		level:     slog.LevelInfo,
	}
}

func (h *cloudWatchHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *cloudWatchHandler) Handle(_ context.Context, r slog.Record) error {
	msg := fmt.Sprintf("%s %s", r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})

	event := cwltypes.InputLogEvent{
		Message:   aws.String(msg),
		Timestamp: aws.Int64(r.Time.UnixMilli()),
	}

	h.mu.Lock()
	h.buffer = append(h.buffer, event)
	needsFlush := len(h.buffer) >= 25
	if h.timer == nil {
		h.timer = time.AfterFunc(5*time.Second, h.flush)
	}
	h.mu.Unlock()

	if needsFlush {
		go h.flush()
	}
	return nil
}

func (h *cloudWatchHandler) flush() {
	h.mu.Lock()
	events := h.buffer
	h.buffer = nil
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.mu.Unlock()

	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  &h.logGroup,
		LogStreamName: &h.logStream,
		LogEvents:     events,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: CloudWatch PutLogEvents failed: %v\n", err)
	}
}

func (h *cloudWatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *cloudWatchHandler) WithGroup(name string) slog.Handler      { return h }

// traceHandler wraps a slog.Handler to inject trace_id and span_id from context.
type traceHandler struct {
	inner slog.Handler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{inner: h.inner.WithGroup(name)}
}

// multiHandler fans out to multiple slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			handler.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
