package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

func TestHostContext(t *testing.T) {
	inv := entities.ContextEnvelope{TimeoutMs: 10}
	hc := NewHostContext(context.Background(), "echo", inv)

	assert.Equal(t, "echo", hc.FunctionName())
	assert.Equal(t, inv, hc.Invocation())

	hc.SetValue("k", 42)
	v, ok := hc.GetValue("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = hc.GetValue("missing")
	assert.False(t, ok)
}

func TestHostContextFrom(t *testing.T) {
	hc := NewHostContext(context.Background(), "echo", entities.ContextEnvelope{})

	assert.Same(t, hc, HostContextFrom(hc, "echo", entities.ContextEnvelope{}))

	nested := HostContextFrom(hc, "log", entities.ContextEnvelope{})
	assert.NotSame(t, hc, nested)
	assert.Equal(t, "log", nested.FunctionName())
}

type sinkFunc func(ctx context.Context, resp entities.Response) error

func (f sinkFunc) Complete(ctx context.Context, resp entities.Response) error { return f(ctx, resp) }

func TestCompletionSinkFrom(t *testing.T) {
	_, ok := CompletionSinkFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCompletionSink(context.Background(), sinkFunc(func(context.Context, entities.Response) error { return nil }))
	sink, ok := CompletionSinkFrom(ctx)
	require.True(t, ok)
	assert.NoError(t, sink.Complete(ctx, entities.SuccessRaw(nil)))
}
