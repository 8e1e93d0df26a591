package entities

import (
	"fmt"
	"strings"
)

// ErrorDetail is the failure half of a Response.
// Message is always present on failure.
type ErrorDetail struct {
	// Message is a human-readable error description.
	Message string `json:"message"`

	// Reasons optionally lists the individual causes reported by the host.
	Reasons []string `json:"reasons,omitempty"`

	// Code marks responses synthesised by the bridge itself (e.g. "empty_result").
	// Hosts may leave it empty.
	Code string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if len(e.Reasons) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Reasons, "; "))
	}
	return msg
}

// NewErrorDetail creates a new ErrorDetail with the given message and reasons.
func NewErrorDetail(message string, reasons ...string) *ErrorDetail {
	return &ErrorDetail{
		Message: message,
		Reasons: reasons,
	}
}

// WithCode sets the code and returns the same ErrorDetail.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
