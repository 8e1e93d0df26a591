package hostfuncs

import (
	"encoding/json"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
)

// Codes set on failures produced by the registry itself.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal_error"
)

// NewValidationError reports malformed call parameters.
func NewValidationError(message string) *entities.ErrorDetail {
	return entities.NewErrorDetail(message).WithCode(CodeValidation)
}

// NewNotFoundError reports a call to an unregistered action.
func NewNotFoundError(name string) *entities.ErrorDetail {
	return entities.NewErrorDetail("unknown host action: " + name).WithCode(CodeNotFound)
}

// NewInternalError reports a host-side failure unrelated to the request.
func NewInternalError(message string) *entities.ErrorDetail {
	return entities.NewErrorDetail(message).WithCode(CodeInternal)
}

// NewPanicError converts a recovered panic value.
func NewPanicError(panicValue any) *entities.ErrorDetail {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return NewInternalError("panic: " + msg)
}

// OK encodes a successful response envelope around already-encoded data.
func OK(data []byte) []byte {
	return encode(entities.SuccessRaw(data))
}

// Fail encodes a failed response envelope for err.
func Fail(err error) []byte {
	detail := bridgeerrors.ToErrorDetail(err)
	if detail == nil || detail.Message == "" {
		detail = NewInternalError("host action failed without detail")
	}
	return encode(entities.Response{OK: false, Error: detail})
}

func encode(resp entities.Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Data is a RawMessage that failed to re-encode; report it instead.
		data, _ = json.Marshal(entities.Response{Error: NewInternalError("invalid response data: " + err.Error())})
	}
	return data
}
