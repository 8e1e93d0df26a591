package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
)

// HostFunc is a typed host action.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler receives the JSON parameters of a call and returns the JSON data
// of a successful response. A returned error becomes a failed response.
type ByteHandler func(ctx context.Context, params []byte) ([]byte, error)

// NewJSONHandler adapts a typed HostFunc to a ByteHandler.
// Null or absent parameters decode to the zero Req.
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, params []byte) ([]byte, error) {
		var req Req
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, NewValidationError(fmt.Sprintf("failed to unmarshal params: %v", err))
			}
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return data, nil
	}
}
