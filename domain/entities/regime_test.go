package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegimeKind(t *testing.T) {
	tests := []struct {
		in   string
		want RegimeKind
	}{
		{"synchronous", RegimeSynchronous},
		{"sync", RegimeSynchronous},
		{"cooperative", RegimeCooperative},
		{"suspend", RegimeCooperative},
		{"delegated", RegimeDelegated},
	}
	for _, tt := range tests {
		got, err := ParseRegimeKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRegimeKind("threads")
	assert.Error(t, err)
}

func TestRegime_Validate(t *testing.T) {
	assert.NoError(t, Synchronous().Validate())
	assert.NoError(t, Cooperative().Validate())
	assert.NoError(t, Delegated(RoleUnconstrained).Validate())
	assert.Error(t, Regime{Kind: RegimeDelegated}.Validate())
	assert.Error(t, Regime{}.Validate())

	assert.Equal(t, "delegated/constrained", Delegated(RoleConstrained).String())
	assert.Equal(t, "rewinding", SuspendRewinding.String())
}

func TestRegime_Code(t *testing.T) {
	for _, r := range []Regime{
		Synchronous(),
		Cooperative(),
		Delegated(RoleConstrained),
		Delegated(RoleUnconstrained),
	} {
		code := r.Code()
		assert.NotZero(t, code, r.String())

		got, err := RegimeFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	assert.Zero(t, Regime{Kind: RegimeDelegated}.Code())

	_, err := RegimeFromCode(0)
	assert.ErrorContains(t, err, "unknown regime code 0")
}
