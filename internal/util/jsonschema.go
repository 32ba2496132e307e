package util

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema returns a JSON schema string for the given object type.
// The object should be a pointer to a struct to capture fields and tags.
func GenerateJSONSchema(obj any) string {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(obj)
	b, _ := json.Marshal(schema)
	return string(b)
}

// SchemaInstruction returns the prompt suffix asking the model to answer with
// JSON matching schema.
func SchemaInstruction(schema string) string {
	return "\n\nRespond only with a JSON value matching this JSON schema, without commentary:\n" + schema
}

// IsStringType reports whether T is string for generics handling.
func IsStringType[T any]() bool {
	var zero T
	return reflect.TypeOf(zero) == reflect.TypeOf("")
}
