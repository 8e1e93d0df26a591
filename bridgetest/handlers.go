package bridgetest

import (
	"encoding/json"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Echo replies with a successful response carrying the call parameters.
func Echo() Handler {
	return func(params json.RawMessage, _ entities.ContextEnvelope) []byte {
		return Raw(entities.SuccessRaw(params))(params, entities.ContextEnvelope{})
	}
}

// Reply always replies with resp.
func Reply(resp entities.Response) Handler {
	return Raw(resp)
}

// Data replies with a successful response carrying v encoded as JSON.
func Data(v any) Handler {
	resp, err := entities.Success(v)
	if err != nil {
		panic(err)
	}
	return Raw(resp)
}

// Raw encodes resp once and replies with the bytes.
func Raw(resp entities.Response) Handler {
	data, err := json.Marshal(resp)
	if err != nil {
		panic(err)
	}
	return Bytes(string(data))
}

// Bytes replies with the given text verbatim, malformed or not.
func Bytes(text string) Handler {
	return func(json.RawMessage, entities.ContextEnvelope) []byte {
		return []byte(text)
	}
}

// Empty replies with a zero-length result.
func Empty() Handler {
	return Bytes("")
}
