package entry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reglet-dev/reglet-bridge/bridge"
	"github.com/reglet-dev/reglet-bridge/delegation"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/internal/wasmcontext"
)

// Host actions used by the entry point.
const (
	ActionComplete     = "complete"
	ActionRunDelegated = "run_delegated"
)

// ErrNoRequest is returned by Serve when the host supplied no request.
var ErrNoRequest = errors.New("entry: no inbound request")

// Handler is the business logic of a guest program. The returned value is
// encoded as the data of the final response; a json.RawMessage is sent
// verbatim.
type Handler func(ctx context.Context, req entities.InvocationRequest) (any, error)

// Serve runs handler once for the inbound request of inst and signals the
// outcome through a fire-and-forget "complete" call.
//
// Handler errors and panics are converted into a failed response here; they
// never reach the caller. Serve only returns errors of the bridge itself,
// ErrNoRequest, or a suspension in the cooperative regime, after which the
// driver re-enters Serve.
//
// In the unconstrained delegated role nothing is signalled: the handler runs
// as a pending result placed into the instance's delegation channel.
func Serve(ctx context.Context, inst *bridge.Instance, handler Handler) error {
	inst.BeginRun()

	raw, err := inst.ReadInitialRequest()
	if err != nil {
		inst.EndRun()
		return err
	}
	if raw == "" {
		inst.EndRun()
		return ErrNoRequest
	}

	var req entities.InvocationRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		inst.EndRun()
		fail := bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, "request", err)
		return inst.InvokeNoWait(ctx, ActionComplete, failure(fail), entities.Context{})
	}

	ctx = bridge.WithInstance(ctx, inst)
	if id := req.Context.Logic.ExecutionID; id != "" {
		ctx = wasmcontext.WithExecutionID(ctx, id)
	}

	if r := inst.Regime(); r.Kind == entities.RegimeDelegated && r.Role == entities.RoleUnconstrained {
		defer inst.EndRun()
		return inst.Channel().Place(delegation.Go(func() (entities.Response, error) {
			resp, _ := run(ctx, handler, req)
			return resp, nil
		}))
	}

	resp, err := run(ctx, handler, req)
	if err != nil {
		// Suspended: the run is not over.
		return err
	}
	inst.EndRun()

	if err := inst.InvokeNoWait(ctx, ActionComplete, resp, req.Context); err != nil {
		inst.Logger().Error("failed to signal completion", "error", err)
		return err
	}
	return nil
}

// run calls handler and converts its outcome into a Response. The only error
// returned is a cooperative suspension.
func run(ctx context.Context, handler Handler, req entities.InvocationRequest) (resp entities.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = entities.Failure(fmt.Sprintf("handler panicked: %v", r))
			err = nil
		}
	}()

	out, err := handler(ctx, req)
	if err != nil {
		if bridge.IsSuspended(err) {
			return entities.Response{}, err
		}
		return failure(err), nil
	}

	switch v := out.(type) {
	case entities.Response:
		return v, nil
	case json.RawMessage:
		return entities.SuccessRaw(v), nil
	}

	resp, err = entities.Success(out)
	if err != nil {
		return failure(err), nil
	}
	return resp, nil
}

func failure(err error) entities.Response {
	return entities.Response{OK: false, Error: bridgeerrors.ToErrorDetail(err)}
}
