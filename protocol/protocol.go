// Package protocol encodes host calls into arena buffers and decodes the
// responses that come back.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/reglet-dev/reglet-bridge/arena"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/internal/wasmcontext"
)

// ErrNoAction is returned when a call names no action.
var ErrNoAction = errors.New("protocol: action name is required")

// Caller issues the two outbound call shapes: blocking and fire-and-forget.
// It holds no per-call state.
type Caller struct {
	arena *arena.Adapter
	host  ports.HostCaller
}

// NewCaller creates a Caller.
func NewCaller(a *arena.Adapter, host ports.HostCaller) *Caller {
	return &Caller{arena: a, host: host}
}

// CallBlocking issues a blocking call. The result is staged by the host for
// the regime-specific retrieval that follows. The three argument buffers are
// released before CallBlocking returns, even when the host primitive panics.
func (c *Caller) CallBlocking(ctx context.Context, action string, params any, lctx entities.Context) error {
	scope := c.arena.Scope()
	defer scope.Close()

	a, p, x, err := c.encode(ctx, scope, action, params, lctx)
	if err != nil {
		return err
	}
	if err := c.host.Call(a, p, x); err != nil {
		return bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "call "+action, err)
	}
	return nil
}

// CallFireAndForget issues a call without waiting for a result. Once the
// host primitive has been issued the three buffers belong to the host and
// are not released here.
func (c *Caller) CallFireAndForget(ctx context.Context, action string, params any, lctx entities.Context) error {
	scope := c.arena.Scope()
	defer scope.Close()

	a, p, x, err := c.encode(ctx, scope, action, params, lctx)
	if err != nil {
		return err
	}
	scope.Detach()
	if err := c.host.Cast(a, p, x); err != nil {
		return bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "cast "+action, err)
	}
	return nil
}

func (c *Caller) encode(ctx context.Context, scope *arena.Scope, action string, params any, lctx entities.Context) (a, p, x entities.Handle, err error) {
	if action == "" {
		return a, p, x, ErrNoAction
	}
	paramsText, err := EncodeParams(params)
	if err != nil {
		return a, p, x, err
	}
	ctxText, err := EncodeContext(ctx, lctx)
	if err != nil {
		return a, p, x, err
	}

	if a, err = scope.Text(action); err != nil {
		return a, p, x, err
	}
	if p, err = scope.Text(paramsText); err != nil {
		return a, p, x, err
	}
	if x, err = scope.Text(ctxText); err != nil {
		return a, p, x, err
	}
	return a, p, x, nil
}

// EncodeParams renders call parameters as JSON text. Absent parameters
// encode as null. Pre-encoded json.RawMessage values are passed through
// after a validity check.
func EncodeParams(params any) (string, error) {
	switch v := params.(type) {
	case nil:
		return "null", nil
	case json.RawMessage:
		if len(v) == 0 {
			return "null", nil
		}
		if !json.Valid(v) {
			return "", fmt.Errorf("protocol: params are not valid JSON")
		}
		return string(v), nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("protocol: encode params: %w", err)
	}
	return string(data), nil
}

// EncodeContext renders the invocation context. The deadline of ctx, if
// any, travels as timeout_ms for the host to enforce.
func EncodeContext(ctx context.Context, lctx entities.Context) (string, error) {
	env := entities.ContextEnvelope{
		Context:   lctx,
		TimeoutMs: wasmcontext.TimeoutMs(ctx),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("protocol: encode context: %w", err)
	}
	return string(data), nil
}

// DecodeResponse validates raw as UTF-8, parses it as a Response and checks
// the ok/error invariants. Every failure is a DecodeFailure.
func DecodeResponse(raw []byte) (entities.Response, error) {
	if len(raw) == 0 {
		return entities.Response{}, bridgeerrors.New(bridgeerrors.KindDecodeFailure, "decode", "no bytes to decode")
	}
	if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, "decode", err)
	}

	var resp entities.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, "decode", err)
	}
	if err := resp.Validate(); err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, "decode", err)
	}
	return resp, nil
}
