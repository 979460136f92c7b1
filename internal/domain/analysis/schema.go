package analysis

import (
	"fmt"
	"math"
)

// FieldType is the JSON type of a declared field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
)

// Field is one property of a declared response shape.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Items    FieldType `json:"items,omitempty"`
	Required bool      `json:"required"`
}

// Schema declares the object shape a structured kind must answer with.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Check verifies the declaration itself is usable.
func (s *Schema) Check() error {
	if s == nil {
		return Errorf(ErrSchemaViolation, "schema", "no response schema declared")
	}
	if s.Name == "" {
		return Errorf(ErrSchemaViolation, "schema", "schema has no name")
	}
	if len(s.Fields) == 0 {
		return Errorf(ErrSchemaViolation, "schema", "schema %s declares no fields", s.Name)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return Errorf(ErrSchemaViolation, "schema", "schema %s has an unnamed field", s.Name)
		}
		if seen[f.Name] {
			return Errorf(ErrSchemaViolation, "schema", "schema %s declares %s twice", s.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			return Errorf(ErrSchemaViolation, "schema", "field %s.%s has unknown type %q", s.Name, f.Name, f.Type)
		}
		if f.Type == TypeArray && (!f.Items.valid() || f.Items == TypeArray) {
			return Errorf(ErrSchemaViolation, "schema", "array field %s.%s needs a scalar item type", s.Name, f.Name)
		}
	}
	return nil
}

// Validate checks a decoded JSON object against the declaration.
func (s *Schema) Validate(obj map[string]any) error {
	if err := s.Check(); err != nil {
		return err
	}
	if obj == nil {
		return Errorf(ErrSchemaViolation, "validate", "%s: body is not a JSON object", s.Name)
	}
	for _, f := range s.Fields {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			if f.Required {
				return Errorf(ErrSchemaViolation, "validate", "%s: missing required field %s", s.Name, f.Name)
			}
			continue
		}
		if !matches(f.Type, v) {
			return Errorf(ErrSchemaViolation, "validate", "%s: field %s is %T, want %s", s.Name, f.Name, v, f.Type)
		}
		if f.Type == TypeArray {
			for i, item := range v.([]any) {
				if !matches(f.Items, item) {
					return Errorf(ErrSchemaViolation, "validate", "%s: %s[%d] is %T, want %s", s.Name, f.Name, i, item, f.Items)
				}
			}
		}
	}
	return nil
}

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray:
		return true
	}
	return false
}

func matches(t FieldType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeInteger:
		n, ok := v.(float64)
		return ok && n == math.Trunc(n) && !math.IsInf(n, 0)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	}
	return false
}

// String is a compact rendering used in logs.
func (s *Schema) String() string {
	if s == nil {
		return "<nil schema>"
	}
	return fmt.Sprintf("%s(%d fields)", s.Name, len(s.Fields))
}
