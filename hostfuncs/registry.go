package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// HandlerRegistry is an immutable registry of host actions.
// It is safe for concurrent use after construction.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	names    []string
}

type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errs       []error
}

// NewRegistry creates a registry from the given options. Every registration
// error is reported, joined. Middleware is applied in FIFO order: the first
// registered runs outermost.
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	r := &HandlerRegistry{
		handlers: make(map[string]ByteHandler, len(b.handlers)),
		names:    slices.Sorted(maps.Keys(b.handlers)),
	}
	for name, h := range b.handlers {
		r.handlers[name] = chain(h, b.middleware)
	}
	return r, nil
}

func chain(h ByteHandler, mw []Middleware) ByteHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Invoke dispatches one call and returns the encoded response envelope.
// It never fails: unknown actions and handler errors become failed envelopes.
func (r *HandlerRegistry) Invoke(ctx context.Context, action string, params []byte, inv entities.ContextEnvelope) []byte {
	handler, ok := r.handlers[action]
	if !ok {
		return Fail(NewNotFoundError(action))
	}

	data, err := handler(HostContextFrom(ctx, action, inv), params)
	if err != nil {
		return Fail(err)
	}
	return OK(data)
}

// Has reports whether an action is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered action names, sorted.
func (r *HandlerRegistry) Names() []string {
	return slices.Clone(r.names)
}

func (b *registryBuilder) add(name string, handler ByteHandler) {
	switch _, dup := b.handlers[name]; {
	case name == "":
		b.errs = append(b.errs, errors.New("host action name cannot be empty"))
	case dup:
		b.errs = append(b.errs, fmt.Errorf("duplicate host action: %q", name))
	default:
		b.handlers[name] = handler
	}
}

// WithByteHandler registers a raw handler.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		b.add(name, handler)
	}
}

// WithHandler registers a typed handler.
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		b.add(name, NewJSONHandler(fn))
	}
}

// WithMiddleware adds middleware around every handler.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
