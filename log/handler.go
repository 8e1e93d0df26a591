// Package log provides a slog handler that forwards guest log records to the
// host through fire-and-forget "log" invokes.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/internal/wasmcontext"
)

// ActionLog is the host action that receives log records.
const ActionLog = "log"

// BridgeHandler implements slog.Handler on top of a ports.Notifier.
type BridgeHandler struct {
	notifier ports.Notifier
	opts     handlerConfig
	attrs    []entities.LogAttr
	group    string
}

// HandlerOption configures the BridgeHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	lctx      entities.Context
	level     slog.Level
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are filtered on the guest side.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file:line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithContext sets the invocation context sent with every record.
func WithContext(lctx entities.Context) HandlerOption {
	return func(c *handlerConfig) {
		c.lctx = lctx
	}
}

// NewHandler creates a BridgeHandler that sends records through n.
func NewHandler(n ports.Notifier, opts ...HandlerOption) *BridgeHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &BridgeHandler{notifier: n, opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// Handle converts record to an entities.LogRecord and casts it to the host.
// Delivery failures are reported on stderr and never returned; logging must
// not fail the caller.
func (h *BridgeHandler) Handle(ctx context.Context, record slog.Record) error {
	rec := entities.LogRecord{
		Context:   wasmcontext.Snapshot(ctx),
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}

	rec.Attrs = make([]entities.LogAttr, 0, len(h.attrs)+record.NumAttrs()+1)
	rec.Attrs = append(rec.Attrs, h.attrs...)
	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := frames.Next()
		rec.Attrs = append(rec.Attrs, entities.LogAttr{
			Key:   slog.SourceKey,
			Type:  "string",
			Value: f.File + ":" + strconv.Itoa(f.Line),
		})
	}
	record.Attrs(func(attr slog.Attr) bool {
		rec.Attrs = appendAttr(rec.Attrs, h.group, attr)
		return true
	})

	if err := h.notifier.InvokeNoWait(ctx, ActionLog, rec, h.opts.lctx); err != nil {
		fmt.Fprintf(os.Stderr, "bridge: failed to forward log record: %v, original: %s\n", err, record.Message)
	}
	return nil
}

// WithAttrs returns a handler whose records carry attrs.
func (h *BridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]entities.LogAttr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.group, a)
	}
	return &clone
}

// WithGroup returns a handler that qualifies subsequent attribute keys with
// name.
func (h *BridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}
