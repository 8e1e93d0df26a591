package hostfuncs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
)

type greetRequest struct {
	Name string `json:"name"`
}

type greetResponse struct {
	Greeting string `json:"greeting"`
}

func TestNewJSONHandler(t *testing.T) {
	handler := NewJSONHandler(func(ctx context.Context, req greetRequest) (greetResponse, error) {
		if req.Name == "" {
			return greetResponse{}, &bridgeerrors.HostError{Message: "name required", Reasons: []string{"empty name"}}
		}
		return greetResponse{Greeting: "hi " + req.Name}, nil
	})

	t.Run("success", func(t *testing.T) {
		data, err := handler(context.Background(), []byte(`{"name":"ada"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"greeting":"hi ada"}`, string(data))
	})

	t.Run("null params decode to zero value", func(t *testing.T) {
		_, err := handler(context.Background(), nil)
		var he *bridgeerrors.HostError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, []string{"empty name"}, he.Reasons)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := handler(context.Background(), []byte(`{`))
		var detail *entities.ErrorDetail
		require.True(t, errors.As(err, &detail))
		assert.Equal(t, CodeValidation, detail.Code)
	})
}

func TestFail_PreservesReasons(t *testing.T) {
	resp := decodeEnvelope(t, Fail(&bridgeerrors.HostError{Message: "denied", Reasons: []string{"quota"}}))

	assert.False(t, resp.OK)
	assert.Equal(t, "denied", resp.Error.Message)
	assert.Equal(t, []string{"quota"}, resp.Error.Reasons)
}

func TestOK_EmptyDataIsNull(t *testing.T) {
	resp := decodeEnvelope(t, OK(nil))
	assert.True(t, resp.OK)
	assert.Equal(t, "null", string(resp.Data))
}
