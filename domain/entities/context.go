package entities

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Context identifies the logic run, tenant and user an invocation belongs to.
// It travels with every host call.
type Context struct {
	Logic  LogicContext  `json:"logic"`
	Tenant TenantContext `json:"tenant"`
	User   UserContext   `json:"user"`
}

// LogicContext identifies the executing logic and the current run.
// ExecutionID is the correlation key of the delegated regime.
type LogicContext struct {
	ExecutionEnv string `json:"execution_env" validate:"omitempty,printascii"`
	ExecutionID  string `json:"execution_id" validate:"omitempty,printascii,max=128"`
	ID           string `json:"id" validate:"omitempty,printascii"`
	TriggerID    string `json:"trigger_id" validate:"omitempty,printascii"`
}

// TenantContext identifies the tenant the logic runs for.
type TenantContext struct {
	ID   *string `json:"id,omitempty" validate:"omitempty,printascii"`
	Name string  `json:"name"`
	Host *string `json:"host,omitempty"`
}

// UserContext identifies the user on whose behalf the logic runs, if any.
type UserContext struct {
	ID *string `json:"id,omitempty" validate:"omitempty,printascii"`
}

// Validate runs the field-level validation rules.
func (c Context) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid context: %w", err)
	}
	return nil
}

// ValidateFor validates the context for use under the given regime.
// The delegated regime requires logic.execution_id.
func (c Context) ValidateFor(r Regime) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if r.Kind == RegimeDelegated {
		if err := validate.Var(c.Logic.ExecutionID, "required"); err != nil {
			return fmt.Errorf("invalid context: logic.execution_id is required in the %s regime", r)
		}
	}
	return nil
}

// ContextEnvelope is the wire form of Context sent with each host call.
// TimeoutMs is a pass-through for host-side enforcement; the bridge never
// enforces it locally.
type ContextEnvelope struct {
	Context
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}
