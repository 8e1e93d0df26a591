// Package sdk holds the convenience layer guest programs use on top of the
// bridge: loosely typed parameter access and struct validation.
package sdk

import (
	"fmt"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Params is the decoded parameter object of an invocation request.
type Params map[string]any

// ParamsOf decodes the parameters of req as a JSON object.
// A request without parameters yields an empty, non-nil Params.
func ParamsOf(req entities.InvocationRequest) (Params, error) {
	p := Params{}
	if err := req.DecodeParams(&p); err != nil {
		return nil, fmt.Errorf("params of %q are not an object: %w", req.Action, err)
	}
	return p, nil
}

const (
	// Version of the bridge SDK
	Version = "0.1.0-alpha"
	// ProtocolVersion is reported by guests in their completion metadata.
	ProtocolVersion = "1"
)
