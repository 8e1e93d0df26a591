package protocol_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/arena"
	"github.com/reglet-dev/reglet-bridge/bridgetest"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/protocol"
)

func newCaller(host *bridgetest.Host) *protocol.Caller {
	return protocol.NewCaller(arena.New(host), host)
}

func lctx(id string) entities.Context {
	return entities.Context{Logic: entities.LogicContext{ExecutionID: id}, Tenant: entities.TenantContext{Name: "acme"}}
}

func TestCallBlocking_ReleasesArguments(t *testing.T) {
	host := bridgetest.New(bridgetest.WithHandler("echo", bridgetest.Echo()))
	c := newCaller(host)

	require.NoError(t, c.CallBlocking(context.Background(), "echo", map[string]int{"x": 1}, lctx("e1")))

	calls := host.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "echo", calls[0].Action)
	assert.JSONEq(t, `{"x":1}`, string(calls[0].Params))
	assert.Equal(t, "e1", calls[0].Context.Logic.ExecutionID)
	assert.False(t, calls[0].Cast)

	stats := host.Arena()
	assert.Equal(t, 3, stats.Allocs)
	assert.Equal(t, 3, stats.Deallocs)
	assert.Zero(t, stats.InUse)
}

func TestCallBlocking_NilParamsEncodeAsNull(t *testing.T) {
	host := bridgetest.New(bridgetest.WithHandler("ping", bridgetest.Echo()))

	require.NoError(t, newCaller(host).CallBlocking(context.Background(), "ping", nil, lctx("e1")))
	assert.Equal(t, "null", string(host.Calls()[0].Params))
}

func TestCallBlocking_PrimitiveFailureStillReleases(t *testing.T) {
	host := bridgetest.New()
	host.FailNextCall(errors.New("trap"))

	err := newCaller(host).CallBlocking(context.Background(), "echo", nil, lctx("e1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrForeignBoundaryFault))
	assert.Zero(t, host.Live())
}

func TestCallBlocking_PrimitivePanicStillReleases(t *testing.T) {
	host := bridgetest.New()
	host.PanicNextCall("unreachable executed")

	assert.Panics(t, func() {
		_ = newCaller(host).CallBlocking(context.Background(), "echo", nil, lctx("e1"))
	})
	assert.Zero(t, host.Live())
}

func TestCallBlocking_TimeoutPassThrough(t *testing.T) {
	host := bridgetest.New(bridgetest.WithFallback(bridgetest.Echo()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, newCaller(host).CallBlocking(ctx, "slow", nil, lctx("e1")))

	timeout := host.Calls()[0].Context.TimeoutMs
	assert.Greater(t, timeout, int64(50_000))
	assert.LessOrEqual(t, timeout, int64(60_000))
}

func TestCallBlocking_RequiresAction(t *testing.T) {
	host := bridgetest.New()
	err := newCaller(host).CallBlocking(context.Background(), "", nil, lctx("e1"))
	assert.ErrorIs(t, err, protocol.ErrNoAction)
	assert.Zero(t, host.Counts().Calls)
}

func TestCallFireAndForget_HandsBuffersToHost(t *testing.T) {
	host := bridgetest.New(bridgetest.WithFallback(bridgetest.Echo()))

	require.NoError(t, newCaller(host).CallFireAndForget(context.Background(), "complete", json.RawMessage(`{"ok":true}`), lctx("e1")))

	calls := host.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Cast)
	assert.Equal(t, 1, host.Counts().Casts)
	assert.Zero(t, host.Counts().Calls)

	// the host released the buffers, not the caller
	assert.Zero(t, host.Live())
	assert.Equal(t, 3, host.Arena().Deallocs)
}

func TestEncodeParams(t *testing.T) {
	s, err := protocol.EncodeParams(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)

	s, err = protocol.EncodeParams(json.RawMessage(`{"a":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, s)

	_, err = protocol.EncodeParams(json.RawMessage(`{"a":`))
	assert.Error(t, err)

	_, err = protocol.EncodeParams(make(chan int))
	assert.Error(t, err)
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
		check   func(t *testing.T, resp entities.Response)
	}{
		{
			name: "success",
			raw:  []byte(`{"ok":true,"data":{"x":1}}`),
			check: func(t *testing.T, resp entities.Response) {
				assert.True(t, resp.OK)
				assert.JSONEq(t, `{"x":1}`, string(resp.Data))
			},
		},
		{
			name: "host failure passes through unchanged",
			raw:  []byte(`{"ok":false,"error":{"message":"not found","reasons":["no row"]}}`),
			check: func(t *testing.T, resp entities.Response) {
				assert.False(t, resp.OK)
				assert.Equal(t, "not found", resp.Error.Message)
				assert.Equal(t, []string{"no row"}, resp.Error.Reasons)
			},
		},
		{name: "empty", raw: nil, wantErr: true},
		{name: "invalid utf-8", raw: []byte{'{', '"', 0xff, 0xfe, '"', '}'}, wantErr: true},
		{name: "invalid json", raw: []byte(`{"ok":tru`), wantErr: true},
		{name: "failure without message", raw: []byte(`{"ok":false,"error":{}}`), wantErr: true},
		{name: "ok with error", raw: []byte(`{"ok":true,"error":{"message":"x"}}`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := protocol.DecodeResponse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, bridgeerrors.ErrDecodeFailure))
				return
			}
			require.NoError(t, err)
			tt.check(t, resp)
		})
	}
}
