package entities

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EmptyResultMessage is the failure message synthesised when the host reports
// a zero-length result.
const EmptyResultMessage = "Host returned an empty result."

// CodeEmptyResult marks a Response synthesised for an empty host result.
const CodeEmptyResult = "empty_result"

// Response is the outcome of an invoke, discriminated by OK.
// Exactly one of Data and Error is meaningful.
type Response struct {
	Error *ErrorDetail    `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	OK    bool            `json:"ok"`
}

// Success creates a successful Response carrying data encoded as JSON.
func Success(data any) (Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return Response{OK: true, Data: raw}, nil
}

// SuccessRaw creates a successful Response from already-encoded JSON.
func SuccessRaw(raw json.RawMessage) Response {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return Response{OK: true, Data: raw}
}

// Failure creates a failed Response.
func Failure(message string, reasons ...string) Response {
	return Response{OK: false, Error: NewErrorDetail(message, reasons...)}
}

// EmptyResult is the Response returned when the host produced no bytes.
func EmptyResult() Response {
	return Response{OK: false, Error: NewErrorDetail(EmptyResultMessage).WithCode(CodeEmptyResult)}
}

// IsEmptyResult reports whether r was synthesised for an empty host result.
func (r Response) IsEmptyResult() bool {
	return !r.OK && r.Error != nil && r.Error.Code == CodeEmptyResult
}

// Validate checks the discriminated-union invariants.
func (r Response) Validate() error {
	if r.OK {
		if r.Error != nil {
			return errors.New("response has ok=true and an error")
		}
		return nil
	}
	if r.Error == nil {
		return errors.New("response has ok=false and no error")
	}
	if r.Error.Message == "" {
		return errors.New("response error has no message")
	}
	return nil
}

// DecodeData unmarshals the data of a successful response into v.
func (r Response) DecodeData(v any) error {
	if !r.OK {
		return fmt.Errorf("cannot decode data of a failed response: %s", r.Error.Message)
	}
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
