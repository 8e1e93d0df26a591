package native

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

type recordingDispatcher struct {
	actions []string
	inv     []entities.ContextEnvelope
	reply   []byte
}

func (d *recordingDispatcher) Invoke(_ context.Context, action string, params []byte, inv entities.ContextEnvelope) []byte {
	d.actions = append(d.actions, action)
	d.inv = append(d.inv, inv)
	if d.reply != nil {
		return d.reply
	}
	out, _ := json.Marshal(entities.SuccessRaw(params))
	return out
}

func place(t *testing.T, s *Substrate, text string) entities.Handle {
	t.Helper()
	if text == "" {
		return entities.Handle{}
	}
	off, err := s.Alloc(uint32(len(text)))
	require.NoError(t, err)
	require.NoError(t, s.WriteString(off, text))
	return entities.Handle{Offset: off, Length: uint32(len(text))}
}

func TestSubstrate_CallAndFetch(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewSubstrate(context.Background(), d)

	action := place(t, s, "echo")
	params := place(t, s, `{"x":1}`)
	lctx := place(t, s, `{"logic":{"execution_id":"e1"},"tenant":{"name":"t"},"user":{},"timeout_ms":20}`)

	require.NoError(t, s.Call(action, params, lctx))
	assert.Equal(t, []string{"echo"}, d.actions)
	assert.Equal(t, "e1", d.inv[0].Logic.ExecutionID)
	assert.Equal(t, int64(20), d.inv[0].TimeoutMs)

	size, err := s.ExecutionResultSize()
	require.NoError(t, err)
	assert.Equal(t, uint32(len(`{"data":{"x":1},"ok":true}`)), size)

	dest, err := s.Alloc(size)
	require.NoError(t, err)
	require.NoError(t, s.ExecutionResult(dest))

	out, err := s.ReadString(dest, size)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":{"x":1}}`, out)

	size, err = s.ExecutionResultSize()
	require.NoError(t, err)
	assert.Zero(t, size, "result is consumed")
	assert.Equal(t, 1, s.Calls())
}

func TestSubstrate_CastTakesOwnership(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewSubstrate(context.Background(), d)
	before := s.Stats().InUse

	require.NoError(t, s.Cast(place(t, s, "log"), place(t, s, `{}`), place(t, s, `{}`)))

	assert.Equal(t, before, s.Stats().InUse)
	assert.Equal(t, 1, s.Casts())
	assert.Equal(t, []string{"log"}, d.actions)
}

func TestSubstrate_StagedResponse(t *testing.T) {
	d := &recordingDispatcher{reply: []byte(`{"ok":true,"data":2}`)}
	s := NewSubstrate(context.Background(), d)

	require.NoError(t, s.Call(place(t, s, "x"), entities.Handle{}, entities.Handle{}))

	n, err := s.ResponseLen()
	require.NoError(t, err)
	require.Equal(t, uint32(20), n)

	ptr, err := s.ResponsePtr()
	require.NoError(t, err)
	again, err := s.ResponsePtr()
	require.NoError(t, err)
	assert.Equal(t, ptr, again, "staging happens once")

	out, err := s.ReadString(ptr, n)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true,"data":2}`, out)

	require.NoError(t, s.ClearResponseBuffer())
	n, err = s.ResponseLen()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, s.Dealloc(ptr, 20), "reader owns the staged buffer")
}

func TestSubstrate_Payload(t *testing.T) {
	s := NewSubstrate(context.Background(), &recordingDispatcher{}, WithPayload([]byte(`{"action":"go"}`)))

	n, err := s.ContextSize()
	require.NoError(t, err)
	dest, err := s.Alloc(n)
	require.NoError(t, err)
	require.NoError(t, s.Context(dest))

	out, err := s.ReadString(dest, n)
	require.NoError(t, err)
	assert.Equal(t, `{"action":"go"}`, out)
}
