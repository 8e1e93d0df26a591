package hostfuncs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Core action names.
const (
	ActionEcho     = "echo"
	ActionLog      = "log"
	ActionComplete = "complete"
)

// HostFuncBundle groups related host actions.
type HostFuncBundle interface {
	Handlers() map[string]ByteHandler
}

type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// CoreBundle returns the actions every bridge host provides:
//
//	echo      returns its params as data
//	log       writes a guest log record to logger
//	complete  delivers a guest's terminal response to the CompletionSink in ctx
func CoreBundle(logger *slog.Logger) HostFuncBundle {
	if logger == nil {
		logger = slog.Default()
	}
	return &staticBundle{
		handlers: map[string]ByteHandler{
			ActionEcho: func(_ context.Context, params []byte) ([]byte, error) {
				if len(params) == 0 {
					return []byte("null"), nil
				}
				return params, nil
			},
			ActionLog: NewJSONHandler(func(ctx context.Context, rec entities.LogRecord) (struct{}, error) {
				return struct{}{}, WriteLogRecord(ctx, logger, rec)
			}),
			ActionComplete: func(ctx context.Context, params []byte) ([]byte, error) {
				var resp entities.Response
				if err := json.Unmarshal(params, &resp); err != nil {
					return nil, NewValidationError(fmt.Sprintf("invalid completion: %v", err))
				}
				if err := resp.Validate(); err != nil {
					return nil, NewValidationError(fmt.Sprintf("invalid completion: %v", err))
				}
				sink, ok := CompletionSinkFrom(ctx)
				if !ok {
					return nil, errors.New("no run is awaiting completion")
				}
				if err := sink.Complete(ctx, resp); err != nil {
					return nil, err
				}
				return []byte("null"), nil
			},
		},
	}
}

// WriteLogRecord replays a guest log record on logger.
func WriteLogRecord(ctx context.Context, logger *slog.Logger, rec entities.LogRecord) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(rec.Level))); err != nil {
		level = slog.LevelInfo
	}

	attrs := make([]slog.Attr, 0, len(rec.Attrs)+1)
	attrs = append(attrs, slog.String("source", "guest"))
	if inv, ok := InvocationFrom(ctx); ok && inv.Logic.ExecutionID != "" {
		attrs = append(attrs, slog.String("execution_id", inv.Logic.ExecutionID))
	}
	for _, a := range rec.Attrs {
		attrs = append(attrs, slog.String(a.Key, a.Value))
	}
	logger.LogAttrs(ctx, level, rec.Message, attrs...)
	return nil
}

type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// Bundles merges several bundles. Later bundles win on name clashes.
func Bundles(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers every handler of a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, handler := range bundle.Handlers() {
			b.add(name, handler)
		}
	}
}
