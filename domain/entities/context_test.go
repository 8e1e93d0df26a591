package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ValidateFor(t *testing.T) {
	ctx := Context{Tenant: TenantContext{Name: "acme"}}

	require.NoError(t, ctx.ValidateFor(Synchronous()))
	require.NoError(t, ctx.ValidateFor(Cooperative()))
	assert.Error(t, ctx.ValidateFor(Delegated(RoleConstrained)))

	ctx.Logic.ExecutionID = "exec-1"
	assert.NoError(t, ctx.ValidateFor(Delegated(RoleConstrained)))
}

func TestContext_ValidateRejectsControlCharacters(t *testing.T) {
	ctx := Context{Logic: LogicContext{ExecutionID: "exec\n1"}}
	assert.Error(t, ctx.Validate())
}

func TestContextEnvelope_JSON(t *testing.T) {
	tenantID := "t-1"
	env := ContextEnvelope{
		Context: Context{
			Logic:  LogicContext{ExecutionEnv: "prod", ExecutionID: "exec-1", ID: "logic-1", TriggerID: "trg-1"},
			Tenant: TenantContext{ID: &tenantID, Name: "acme"},
		},
		TimeoutMs: 1500,
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"logic": {"execution_env":"prod","execution_id":"exec-1","id":"logic-1","trigger_id":"trg-1"},
		"tenant": {"id":"t-1","name":"acme"},
		"user": {},
		"timeout_ms": 1500
	}`, string(raw))

	var back ContextEnvelope
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, env, back)
}
