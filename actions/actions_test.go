package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/actions"
	"github.com/reglet-dev/reglet-bridge/bridge"
	"github.com/reglet-dev/reglet-bridge/bridgetest"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
)

type lookupRequest struct {
	ID string `json:"id"`
}

type record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newInstance(t *testing.T, opts ...bridgetest.Option) (*bridge.Instance, *bridgetest.Host) {
	t.Helper()
	host := bridgetest.New(opts...)
	inst, err := bridge.New(host)
	require.NoError(t, err)
	return inst, host
}

func TestCall_DecodesData(t *testing.T) {
	inst, host := newInstance(t, bridgetest.WithHandler("lookup", bridgetest.Data(record{ID: "42", Title: "answer"})))

	got, err := actions.Call[lookupRequest, record](context.Background(), inst, "lookup", lookupRequest{ID: "42"}, entities.Context{})
	require.NoError(t, err)
	assert.Equal(t, record{ID: "42", Title: "answer"}, got)

	calls := host.CallsTo("lookup")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"id":"42"}`, string(calls[0].Params))
}

func TestCall_HostFailure(t *testing.T) {
	inst, _ := newInstance(t, bridgetest.WithHandler("lookup", bridgetest.Reply(entities.Failure("not found", "no row"))))

	_, err := actions.Call[lookupRequest, record](context.Background(), inst, "lookup", lookupRequest{}, entities.Context{})

	var hostErr *bridgeerrors.HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, "not found", hostErr.Message)
	assert.Equal(t, []string{"no row"}, hostErr.Reasons)
}

func TestCall_EmptyResult(t *testing.T) {
	inst, _ := newInstance(t, bridgetest.WithHandler("lookup", bridgetest.Empty()))

	_, err := actions.Call[lookupRequest, record](context.Background(), inst, "lookup", lookupRequest{}, entities.Context{})
	assert.ErrorIs(t, err, bridgeerrors.ErrEmptyResult)
}

func TestCall_DataOfWrongShape(t *testing.T) {
	inst, _ := newInstance(t, bridgetest.WithHandler("lookup", bridgetest.Data([]int{1})))

	_, err := actions.Call[lookupRequest, record](context.Background(), inst, "lookup", lookupRequest{}, entities.Context{})
	assert.ErrorIs(t, err, bridgeerrors.ErrDecodeFailure)
}

func TestNotify(t *testing.T) {
	inst, host := newInstance(t)

	require.NoError(t, actions.Notify(context.Background(), inst, "audit", map[string]string{"event": "login"}, entities.Context{}))

	calls := host.CallsTo("audit")
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Cast)
}
