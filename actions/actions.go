// Package actions provides typed access to host actions.
package actions

import (
	"context"
	"fmt"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// Invoker issues blocking host calls. *bridge.Instance implements it.
type Invoker interface {
	Invoke(ctx context.Context, action string, params any, lctx entities.Context) (entities.Response, error)
}

// Call invokes action with req and decodes the response data into Resp.
// A failed response is returned as an error: *errors.HostError for host
// failures, errors.ErrEmptyResult when the host returned nothing.
func Call[Req any, Resp any](ctx context.Context, inv Invoker, action string, req Req, lctx entities.Context) (Resp, error) {
	var resp Resp

	out, err := inv.Invoke(ctx, action, req, lctx)
	if err != nil {
		return resp, err
	}
	if err := bridgeerrors.FromResponse(out); err != nil {
		return resp, err
	}

	if err := out.DecodeData(&resp); err != nil {
		return resp, bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, action,
			fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return resp, nil
}

// Notify casts action with req without waiting.
func Notify[Req any](ctx context.Context, n ports.Notifier, action string, req Req, lctx entities.Context) error {
	return n.InvokeNoWait(ctx, action, req, lctx)
}
