package hostfuncs

import (
	"context"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// HostContext extends context.Context with the details of the call being
// served.
type HostContext interface {
	context.Context

	// FunctionName returns the action being invoked.
	FunctionName() string

	// Invocation returns the context envelope the guest sent with the call.
	Invocation() entities.ContextEnvelope

	// SetValue stores a value for the duration of the call.
	SetValue(key, value any)

	// GetValue retrieves a value stored with SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	values     map[any]any
	funcName   string
	invocation entities.ContextEnvelope
}

// NewHostContext creates a new HostContext for one call.
func NewHostContext(ctx context.Context, funcName string, inv entities.ContextEnvelope) HostContext {
	return &hostContext{
		Context:    ctx,
		funcName:   funcName,
		invocation: inv,
		values:     make(map[any]any),
	}
}

type hostContextKey struct{}

// Value exposes the HostContext itself to contexts derived from it.
func (c *hostContext) Value(key any) any {
	if _, ok := key.(hostContextKey); ok {
		return c
	}
	return c.Context.Value(key)
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) Invocation() entities.ContextEnvelope {
	return c.invocation
}

func (c *hostContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom returns ctx if it already serves funcName, otherwise a new
// HostContext wrapping it.
func HostContextFrom(ctx context.Context, funcName string, inv entities.ContextEnvelope) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName, inv)
}

// InvocationFrom returns the invocation envelope of the call ctx serves, if
// any. Contexts derived from a HostContext carry it too.
func InvocationFrom(ctx context.Context) (entities.ContextEnvelope, bool) {
	if hc, ok := ctx.Value(hostContextKey{}).(HostContext); ok {
		return hc.Invocation(), true
	}
	return entities.ContextEnvelope{}, false
}

// CompletionSink receives the terminal completion signalled by a guest run.
type CompletionSink interface {
	Complete(ctx context.Context, resp entities.Response) error
}

type completionSinkKey struct{}

// WithCompletionSink attaches the sink the "complete" action delivers to.
func WithCompletionSink(ctx context.Context, sink CompletionSink) context.Context {
	return context.WithValue(ctx, completionSinkKey{}, sink)
}

// CompletionSinkFrom returns the sink attached with WithCompletionSink.
func CompletionSinkFrom(ctx context.Context) (CompletionSink, bool) {
	sink, ok := ctx.Value(completionSinkKey{}).(CompletionSink)
	return sink, ok
}
