// Package wasmcontext carries the parts of a context.Context that cross the
// boundary: the execution id and the remaining time. Deadlines travel as a
// relative timeout, since guest and host clocks need not agree.
package wasmcontext

import (
	"context"
	"time"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

type executionIDKey struct{}

// WithExecutionID returns a copy of ctx carrying id.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey{}, id)
}

// ExecutionIDFrom returns the execution id carried by ctx, or "".
func ExecutionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey{}).(string)
	return id
}

// TimeoutMs returns the time left before the deadline of ctx, rounded up to
// whole milliseconds. It is 0 when ctx has no deadline and at least 1 when it
// has one, even if the deadline already passed.
func TimeoutMs(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	left := time.Until(deadline)
	if left <= time.Millisecond {
		return 1
	}
	return int64((left + time.Millisecond - 1) / time.Millisecond)
}

// Snapshot describes ctx for a log record.
func Snapshot(ctx context.Context) entities.ContextWire {
	wire := entities.ContextWire{
		ExecutionID: ExecutionIDFrom(ctx),
		TimeoutMs:   TimeoutMs(ctx),
	}
	if ctx.Err() != nil {
		wire.Canceled = true
	}
	return wire
}

// WithTimeout derives a context that expires timeoutMs after now. A
// non-positive timeout only adds cancellation.
func WithTimeout(parent context.Context, timeoutMs int64) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeoutMs <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(timeoutMs)*time.Millisecond)
}
