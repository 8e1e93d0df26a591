package hostfuncs

import (
	"context"
	"log/slog"
	"time"

	"github.com/reglet-dev/reglet-bridge/internal/wasmcontext"
)

// Middleware wraps a ByteHandler.
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption configures a HandlerRegistry under construction.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware converts a handler panic into a failed response.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, params []byte) (data []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					data = nil
					err = NewPanicError(r)
				}
			}()
			return next(ctx, params)
		}
	}
}

// LoggingMiddleware logs every call at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, params []byte) ([]byte, error) {
			action := "unknown"
			var executionID string
			if hc, ok := ctx.(HostContext); ok {
				action = hc.FunctionName()
				executionID = hc.Invocation().Logic.ExecutionID
			}

			start := time.Now()
			data, err := next(ctx, params)
			attrs := []any{
				"action", action,
				"execution_id", executionID,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "host action failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "host action completed", attrs...)
			}
			return data, err
		}
	}
}

// DeadlineMiddleware enforces the timeout_ms the guest passed through with
// the call context. Calls without a timeout run under the caller's context.
func DeadlineMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, params []byte) ([]byte, error) {
			hc, ok := ctx.(HostContext)
			if !ok || hc.Invocation().TimeoutMs <= 0 {
				return next(ctx, params)
			}

			inv := hc.Invocation()
			dctx, cancel := wasmcontext.WithTimeout(ctx, inv.TimeoutMs)
			defer cancel()
			return next(NewHostContext(dctx, hc.FunctionName(), inv), params)
		}
	}
}
