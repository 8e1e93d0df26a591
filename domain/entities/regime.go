package entities

import "fmt"

// RegimeKind selects how a logical invoke is carried out.
type RegimeKind int

const (
	// RegimeSynchronous issues a blocking call and fetches the result directly.
	RegimeSynchronous RegimeKind = iota + 1

	// RegimeCooperative issues a blocking call that may unwind the substrate
	// stack and later rewind back into the same invoke.
	RegimeCooperative

	// RegimeDelegated hands the whole program to an unconstrained executor.
	RegimeDelegated
)

// String returns the name of the regime kind.
func (k RegimeKind) String() string {
	switch k {
	case RegimeSynchronous:
		return "synchronous"
	case RegimeCooperative:
		return "cooperative"
	case RegimeDelegated:
		return "delegated"
	default:
		return fmt.Sprintf("regime(%d)", int(k))
	}
}

// ParseRegimeKind parses the textual form used in configuration files.
func ParseRegimeKind(s string) (RegimeKind, error) {
	switch s {
	case "synchronous", "sync":
		return RegimeSynchronous, nil
	case "cooperative", "suspend":
		return RegimeCooperative, nil
	case "delegated":
		return RegimeDelegated, nil
	default:
		return 0, fmt.Errorf("unknown execution regime %q", s)
	}
}

// DelegationRole tells delegated code which side of the hand-off it runs on.
type DelegationRole int

const (
	// RoleConstrained is the primary instance that cannot run the program itself.
	RoleConstrained DelegationRole = iota + 1

	// RoleUnconstrained is the secondary executor that evaluates the program.
	RoleUnconstrained
)

// String returns the name of the role.
func (r DelegationRole) String() string {
	switch r {
	case RoleConstrained:
		return "constrained"
	case RoleUnconstrained:
		return "unconstrained"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Regime is the execution regime of a program instance. It is chosen once,
// when the instance is created, and never changes afterwards.
// Role is only meaningful for RegimeDelegated.
type Regime struct {
	Kind RegimeKind
	Role DelegationRole
}

// Synchronous returns the synchronous call-and-fetch regime.
func Synchronous() Regime {
	return Regime{Kind: RegimeSynchronous}
}

// Cooperative returns the unwind/rewind regime.
func Cooperative() Regime {
	return Regime{Kind: RegimeCooperative}
}

// Delegated returns the delegated-execution regime for the given side.
func Delegated(role DelegationRole) Regime {
	return Regime{Kind: RegimeDelegated, Role: role}
}

// Validate checks that the regime is one of the supported variants.
func (r Regime) Validate() error {
	switch r.Kind {
	case RegimeSynchronous, RegimeCooperative:
		return nil
	case RegimeDelegated:
		if r.Role != RoleConstrained && r.Role != RoleUnconstrained {
			return fmt.Errorf("delegated regime requires a role, got %v", r.Role)
		}
		return nil
	default:
		return fmt.Errorf("unsupported regime %v", r.Kind)
	}
}

// String implements fmt.Stringer.
func (r Regime) String() string {
	if r.Kind == RegimeDelegated {
		return fmt.Sprintf("%s/%s", r.Kind, r.Role)
	}
	return r.Kind.String()
}

// Regime codes exchanged over the host contract, so a guest learns at load
// time which regime its host instantiated it under.
const (
	regimeCodeSynchronous   int32 = 1
	regimeCodeCooperative   int32 = 2
	regimeCodeConstrained   int32 = 3
	regimeCodeUnconstrained int32 = 4
)

// Code returns the wire code of the regime, or 0 for an invalid one.
func (r Regime) Code() int32 {
	switch r.Kind {
	case RegimeSynchronous:
		return regimeCodeSynchronous
	case RegimeCooperative:
		return regimeCodeCooperative
	case RegimeDelegated:
		switch r.Role {
		case RoleConstrained:
			return regimeCodeConstrained
		case RoleUnconstrained:
			return regimeCodeUnconstrained
		}
	}
	return 0
}

// RegimeFromCode is the inverse of Regime.Code.
func RegimeFromCode(code int32) (Regime, error) {
	switch code {
	case regimeCodeSynchronous:
		return Synchronous(), nil
	case regimeCodeCooperative:
		return Cooperative(), nil
	case regimeCodeConstrained:
		return Delegated(RoleConstrained), nil
	case regimeCodeUnconstrained:
		return Delegated(RoleUnconstrained), nil
	default:
		return Regime{}, fmt.Errorf("unknown regime code %d", code)
	}
}

// SuspendState is the externally observable signal the substrate exposes in
// the cooperative regime. The values match the host contract.
type SuspendState int32

const (
	// SuspendNormal means no unwind or rewind is in progress.
	SuspendNormal SuspendState = 1

	// SuspendRewinding means the substrate is restoring a previously saved stack.
	SuspendRewinding SuspendState = 2

	// SuspendUnwinding means the substrate is saving the stack after a call.
	SuspendUnwinding SuspendState = 3
)

// String returns the name of the state.
func (s SuspendState) String() string {
	switch s {
	case SuspendNormal:
		return "normal"
	case SuspendRewinding:
		return "rewinding"
	case SuspendUnwinding:
		return "unwinding"
	default:
		return fmt.Sprintf("suspend(%d)", int32(s))
	}
}
