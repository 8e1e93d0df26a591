package entry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/reglet-bridge/bridge"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
)

// Program is a bundled guest program that can be handed to the delegated
// runtime.
type Program struct {
	Name   string
	Source []byte
}

// Delegate hands prog to the unconstrained runtime and returns the data of
// its final response.
//
// In the constrained role the source and req are shipped through one
// blocking "run_delegated" call. In the unconstrained role the program is
// evaluated in-process against a fresh delegation slot and its pending result
// is awaited; req is pre-placed as its inbound request unless a payload is
// already pre-placed.
func Delegate(ctx context.Context, inst *bridge.Instance, prog Program, req entities.InvocationRequest) (json.RawMessage, error) {
	r := inst.Regime()
	if r.Kind != entities.RegimeDelegated {
		return nil, bridgeerrors.New(bridgeerrors.KindInvalidRegime, "delegate", fmt.Sprintf("instance runs in the %s regime", r))
	}

	var resp entities.Response
	var err error
	if r.Role == entities.RoleConstrained {
		resp, err = handOff(ctx, inst, prog, req)
	} else {
		resp, err = evaluate(ctx, inst, prog, req)
	}
	if err != nil {
		return nil, err
	}
	if err := bridgeerrors.FromResponse(resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func handOff(ctx context.Context, inst *bridge.Instance, prog Program, req entities.InvocationRequest) (entities.Response, error) {
	source, err := EncodeSource(prog.Source)
	if err != nil {
		return entities.Response{}, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return entities.Response{}, fmt.Errorf("failed to marshal delegated request: %w", err)
	}

	run := entities.DelegatedRun{
		Program:  prog.Name,
		Source:   source,
		Encoding: entities.SourceEncodingBrotliBase64,
		Payload:  payload,
	}
	inst.Logger().Debug("handing off to delegated runtime", "program", prog.Name, "source_bytes", len(prog.Source))
	return inst.Invoke(ctx, ActionRunDelegated, run, req.Context)
}

func evaluate(ctx context.Context, inst *bridge.Instance, prog Program, req entities.InvocationRequest) (entities.Response, error) {
	ev := inst.Evaluator()
	if ev == nil {
		return entities.Response{}, bridgeerrors.New(bridgeerrors.KindInvalidRegime, "delegate", "the unconstrained role needs an evaluator")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return entities.Response{}, fmt.Errorf("failed to marshal delegated request: %w", err)
	}
	inst.PreplacePayload(string(payload))

	ch := inst.Channel()
	if err := ch.Create(); err != nil {
		return entities.Response{}, err
	}
	defer ch.Destroy()

	if err := ev.Evaluate(bridge.WithInstance(ctx, inst), prog.Name, prog.Source); err != nil {
		return entities.Response{}, fmt.Errorf("failed to evaluate %s: %w", prog.Name, err)
	}
	return ch.TakeAndAwait(ctx)
}
