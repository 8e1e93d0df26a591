// Package errors provides the error taxonomy of the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Kind categorizes a bridge failure.
type Kind string

const (
	KindEmptyResult          Kind = "empty_result"
	KindDecodeFailure        Kind = "decode_failure"
	KindHostError            Kind = "host_error"
	KindMissingChannel       Kind = "missing_channel"
	KindHandlerNotInvoked    Kind = "handler_not_invoked"
	KindForeignBoundaryFault Kind = "foreign_boundary_fault"
	KindChannelOccupied      Kind = "channel_occupied"
	KindChannelExists        Kind = "channel_exists"
	KindStagingBusy          Kind = "staging_busy"
	KindSuspended            Kind = "suspended"
	KindUnexpectedRewind     Kind = "unexpected_rewind"
	KindInvalidRegime        Kind = "invalid_regime"
	KindProgramUnknown       Kind = "program_unknown"
)

// Sentinels for errors.Is. A *BridgeError matches a sentinel with the same Kind.
var (
	ErrEmptyResult          = &BridgeError{Kind: KindEmptyResult}
	ErrDecodeFailure        = &BridgeError{Kind: KindDecodeFailure}
	ErrMissingChannel       = &BridgeError{Kind: KindMissingChannel}
	ErrHandlerNotInvoked    = &BridgeError{Kind: KindHandlerNotInvoked}
	ErrForeignBoundaryFault = &BridgeError{Kind: KindForeignBoundaryFault}
	ErrChannelOccupied      = &BridgeError{Kind: KindChannelOccupied}
	ErrChannelExists        = &BridgeError{Kind: KindChannelExists}
	ErrStagingBusy          = &BridgeError{Kind: KindStagingBusy}
	ErrSuspended            = &BridgeError{Kind: KindSuspended}
	ErrUnexpectedRewind     = &BridgeError{Kind: KindUnexpectedRewind}
	ErrInvalidRegime        = &BridgeError{Kind: KindInvalidRegime}
	ErrProgramUnknown       = &BridgeError{Kind: KindProgramUnknown}
)

// DetailedError is implemented by errors that can describe themselves as a
// wire ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// BridgeError is a failure raised by the bridge itself.
type BridgeError struct {
	Err    error
	Kind   Kind
	Op     string
	Detail string
}

// New creates a BridgeError of the given kind.
func New(kind Kind, op, detail string) *BridgeError {
	return &BridgeError{Kind: kind, Op: op, Detail: detail}
}

// Wrap creates a BridgeError of the given kind around err.
func Wrap(kind Kind, op string, err error) *BridgeError {
	return &BridgeError{Kind: kind, Op: op, Err: err}
}

func (e *BridgeError) Error() string {
	var b strings.Builder
	b.WriteString("bridge: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is matches any *BridgeError with the same Kind.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ToErrorDetail implements DetailedError.
func (e *BridgeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Code: string(e.Kind)}
}

// HostError is a response the host decoded successfully but marked ok=false.
type HostError struct {
	Message string
	Reasons []string
}

func (e *HostError) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("host error: %s (%s)", e.Message, strings.Join(e.Reasons, "; "))
	}
	return "host error: " + e.Message
}

// ToErrorDetail implements DetailedError.
func (e *HostError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(e.Message, e.Reasons...)
}

// FromResponse returns the error carried by a failed response, or nil when the
// response succeeded. A synthesised empty result maps to ErrEmptyResult.
func FromResponse(resp entities.Response) error {
	if resp.OK {
		return nil
	}
	if resp.IsEmptyResult() {
		return New(KindEmptyResult, "invoke", resp.Error.Message)
	}
	if resp.Error == nil {
		return &HostError{Message: "host reported failure without detail"}
	}
	return &HostError{Message: resp.Error.Message, Reasons: resp.Error.Reasons}
}

// ToErrorDetail converts any error to a wire ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{Message: err.Error()}
}

// KindOf returns the Kind of the first BridgeError in err's chain.
// Host errors report KindHostError.
func KindOf(err error) (Kind, bool) {
	var be *BridgeError
	if stdErrors.As(err, &be) {
		return be.Kind, true
	}
	var he *HostError
	if stdErrors.As(err, &he) {
		return KindHostError, true
	}
	return "", false
}
