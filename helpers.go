package sdk

import (
	"fmt"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// ParamError reports a required parameter that is missing or has the wrong
// type. Returned from a handler it becomes the message of the failed
// response.
type ParamError struct {
	Field string
	Want  string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("required %s parameter %q is missing or has the wrong type", e.Want, e.Field)
}

// ToErrorDetail implements errors.DetailedError.
func (e *ParamError) ToErrorDetail() *entities.ErrorDetail {
	d := entities.NewErrorDetail(e.Error())
	d.Code = "invalid_params"
	return d
}

// GetString returns the string stored under key.
func GetString(params Params, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok
}

// GetInt returns the integer stored under key. JSON numbers decode as
// float64, so those are truncated.
func GetInt(params Params, key string) (int, bool) {
	switch n := params[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// GetFloat returns the number stored under key.
func GetFloat(params Params, key string) (float64, bool) {
	switch n := params[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// GetBool returns the boolean stored under key.
func GetBool(params Params, key string) (bool, bool) {
	b, ok := params[key].(bool)
	return b, ok
}

// GetStringSlice returns the array of strings stored under key. Any
// non-string element fails the lookup.
func GetStringSlice(params Params, key string) ([]string, bool) {
	arr, ok := params[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// GetObject returns the nested object stored under key.
func GetObject(params Params, key string) (Params, bool) {
	m, ok := params[key].(map[string]any)
	return Params(m), ok
}

func require[T any](params Params, key, want string, get func(Params, string) (T, bool)) (T, error) {
	v, ok := get(params, key)
	if !ok {
		var zero T
		return zero, &ParamError{Field: key, Want: want}
	}
	return v, nil
}

// MustGetString is GetString for required parameters.
func MustGetString(params Params, key string) (string, error) {
	return require(params, key, "string", GetString)
}

// MustGetInt is GetInt for required parameters.
func MustGetInt(params Params, key string) (int, error) {
	return require(params, key, "int", GetInt)
}

// MustGetBool is GetBool for required parameters.
func MustGetBool(params Params, key string) (bool, error) {
	return require(params, key, "bool", GetBool)
}

func orDefault[T any](params Params, key string, def T, get func(Params, string) (T, bool)) T {
	if v, ok := get(params, key); ok {
		return v
	}
	return def
}

// GetStringDefault returns the string under key, or def.
func GetStringDefault(params Params, key, def string) string {
	return orDefault(params, key, def, GetString)
}

// GetIntDefault returns the integer under key, or def.
func GetIntDefault(params Params, key string, def int) int {
	return orDefault(params, key, def, GetInt)
}

// GetBoolDefault returns the boolean under key, or def.
func GetBoolDefault(params Params, key string, def bool) bool {
	return orDefault(params, key, def, GetBool)
}
