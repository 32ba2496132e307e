package util

import (
	"strings"
	"testing"
)

type sample struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestGenerateJSONSchema(t *testing.T) {
	schema := GenerateJSONSchema(&sample{})
	if len(schema) == 0 {
		t.Fatal("empty schema")
	}
	if !strings.Contains(schema, `"name"`) || !strings.Contains(schema, `"age"`) {
		t.Fatalf("schema missing fields: %s", schema)
	}
	if strings.Contains(schema, `"$ref"`) {
		t.Fatalf("schema should be inlined: %s", schema)
	}
}

func TestSchemaInstruction(t *testing.T) {
	got := SchemaInstruction(`{"type":"object"}`)
	if !strings.HasSuffix(got, `{"type":"object"}`) || !strings.Contains(got, "JSON schema") {
		t.Fatalf("unexpected instruction: %q", got)
	}
}

func TestIsStringType(t *testing.T) {
	if !IsStringType[string]() {
		t.Fatal("string should be string type")
	}
	if IsStringType[sample]() {
		t.Fatal("struct should not be string type")
	}
}
