package entities

import "encoding/json"

// InvocationRequest is the inbound request materialised by the entry point and
// the logical content of every outbound invoke.
type InvocationRequest struct {
	Action  string          `json:"action,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Context Context         `json:"context"`
}

// DecodeParams unmarshals the request parameters into v.
// A missing or null payload leaves v untouched.
func (r InvocationRequest) DecodeParams(v any) error {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

// DelegatedRun is the parameter payload of the delegated hand-off call.
// Source holds the bundled program, encoded as described by Encoding.
type DelegatedRun struct {
	Program  string          `json:"program"`
	Source   string          `json:"source"`
	Encoding string          `json:"encoding"`
	Payload  json.RawMessage `json:"payload"`
}

// Source encodings understood by the delegated runner.
const (
	SourceEncodingBrotliBase64 = "br+base64"
	SourceEncodingBase64       = "base64"
)
