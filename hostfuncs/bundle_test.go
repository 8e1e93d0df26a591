package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

func newCoreRegistry(t *testing.T, logger *slog.Logger) *HandlerRegistry {
	t.Helper()
	reg, err := NewRegistry(
		WithBundle(CoreBundle(logger)),
		WithMiddleware(PanicRecoveryMiddleware()),
	)
	require.NoError(t, err)
	return reg
}

func TestCoreBundle_Names(t *testing.T) {
	reg := newCoreRegistry(t, nil)
	assert.Equal(t, []string{"complete", "echo", "log"}, reg.Names())
}

func TestCoreBundle_Echo(t *testing.T) {
	reg := newCoreRegistry(t, nil)

	resp := decodeEnvelope(t, reg.Invoke(context.Background(), ActionEcho, []byte(`{"x":1}`), entities.ContextEnvelope{}))
	assert.True(t, resp.OK)
	assert.JSONEq(t, `{"x":1}`, string(resp.Data))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"x":1},"ok":true}`, string(raw))
}

func TestCoreBundle_Log(t *testing.T) {
	var buf bytes.Buffer
	reg := newCoreRegistry(t, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	rec := entities.LogRecord{
		Level:   "WARN",
		Message: "cache miss",
		Attrs:   []entities.LogAttr{{Key: "key", Type: "string", Value: "user:1"}},
	}
	params, err := json.Marshal(rec)
	require.NoError(t, err)
	inv := entities.ContextEnvelope{Context: entities.Context{Logic: entities.LogicContext{ExecutionID: "exec-3"}}}

	resp := decodeEnvelope(t, reg.Invoke(context.Background(), ActionLog, params, inv))
	assert.True(t, resp.OK)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="cache miss"`)
	assert.Contains(t, out, "key=user:1")
	assert.Contains(t, out, "execution_id=exec-3")
}

func TestCoreBundle_Complete(t *testing.T) {
	reg := newCoreRegistry(t, nil)

	t.Run("delivers to sink", func(t *testing.T) {
		var got entities.Response
		ctx := WithCompletionSink(context.Background(), sinkFunc(func(_ context.Context, resp entities.Response) error {
			got = resp
			return nil
		}))

		resp := decodeEnvelope(t, reg.Invoke(ctx, ActionComplete, []byte(`{"ok":true,"data":{"greeting":"hi"}}`), entities.ContextEnvelope{}))
		assert.True(t, resp.OK)
		assert.True(t, got.OK)
		assert.JSONEq(t, `{"greeting":"hi"}`, string(got.Data))
	})

	t.Run("no sink", func(t *testing.T) {
		resp := decodeEnvelope(t, reg.Invoke(context.Background(), ActionComplete, []byte(`{"ok":true}`), entities.ContextEnvelope{}))
		assert.False(t, resp.OK)
		assert.Contains(t, resp.Error.Message, "awaiting completion")
	})

	t.Run("invalid completion", func(t *testing.T) {
		resp := decodeEnvelope(t, reg.Invoke(context.Background(), ActionComplete, []byte(`{"ok":false}`), entities.ContextEnvelope{}))
		assert.False(t, resp.OK)
		assert.Equal(t, CodeValidation, resp.Error.Code)
	})
}
