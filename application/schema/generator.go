// Package schema generates JSON Schemas for the bridge wire types.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// BaseID prefixes the $id of every catalogued schema.
const BaseID = "https://reglet.dev/schemas/bridge/"

// GenerateOption adjusts a generated schema before it is encoded.
type GenerateOption func(*jsonschema.Schema)

// WithID sets $id and title from a catalogue name.
func WithID(name string) GenerateOption {
	return func(s *jsonschema.Schema) {
		s.ID = jsonschema.ID(BaseID + name + ".json")
		s.Title = name
	}
}

// constraints add what struct tags alone cannot express.
var constraints = map[reflect.Type]func(*jsonschema.Schema){
	reflect.TypeOf(entities.Response{}):  failedResponseCarriesError,
	reflect.TypeOf(config.HostConfig{}): hostConfigEnums,
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go value.
func GenerateSchema(v any, opts ...GenerateOption) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	if fn, ok := constraints[reflect.TypeOf(v)]; ok {
		fn(schema)
	}
	for _, opt := range opts {
		opt(schema)
	}

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// failedResponseCarriesError requires error whenever ok is false.
func failedResponseCarriesError(s *jsonschema.Schema) {
	cond := jsonschema.NewProperties()
	cond.Set("ok", &jsonschema.Schema{Const: false})
	s.If = &jsonschema.Schema{Properties: cond, Required: []string{"ok"}}
	s.Then = &jsonschema.Schema{Required: []string{"error"}}
}

func hostConfigEnums(s *jsonschema.Schema) {
	setEnum(s, "regime", "synchronous", "sync", "cooperative", "suspend", "delegated")
	setEnum(s, "log_level", "debug", "info", "warn", "error")
}

func setEnum(s *jsonschema.Schema, prop string, values ...any) {
	if s.Properties == nil {
		return
	}
	if p, ok := s.Properties.Get(prop); ok && p != nil {
		p.Enum = values
	}
}
