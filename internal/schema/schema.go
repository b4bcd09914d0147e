// Package schema derives MCP tool input schemas from typed argument structs.
package schema

import (
	"strings"

	"github.com/invopop/jsonschema"
)

// Generate produces a tool input schema from a Go struct type T.
// It uses struct tags (json, jsonschema, jsonschema_description) to derive the
// schema. Extra properties are allowed on the root object so callers may pass
// custom fields as flat keys.
func Generate[T any]() map[string]interface{} {
	var zero T
	s := jsonschema.Reflect(&zero)
	root := extractRoot(s)

	result := map[string]interface{}{
		"type":                 "object",
		"properties":           schemaProperties(root),
		"additionalProperties": true,
	}
	if len(root.Required) > 0 {
		result["required"] = root.Required
	}
	return result
}

// Required lists the required property names of T
func Required[T any]() []string {
	var zero T
	return extractRoot(jsonschema.Reflect(&zero)).Required
}

// extractRoot resolves the root schema, following $ref to $defs if needed
func extractRoot(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Ref == "" || s.Definitions == nil {
		return s
	}
	name := s.Ref[strings.LastIndex(s.Ref, "/")+1:]
	if def, ok := s.Definitions[name]; ok {
		return def
	}
	for _, def := range s.Definitions {
		if def.Type == "object" {
			return def
		}
	}
	return s
}

func schemaProperties(s *jsonschema.Schema) map[string]interface{} {
	props := make(map[string]interface{})
	if s.Properties == nil {
		return props
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = propertySchema(pair.Value)
	}
	return props
}

func propertySchema(s *jsonschema.Schema) map[string]interface{} {
	m := make(map[string]interface{})

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}

	// Pointer types come back as anyOf with null
	if len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				m["type"] = sub.Type
				break
			}
		}
	}

	if s.Properties != nil && s.Properties.Len() > 0 {
		m["type"] = "object"
		m["properties"] = schemaProperties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	} else if s.Type == "object" {
		// Free-form map, e.g. custom_fields
		m["additionalProperties"] = true
	}

	if s.Items != nil {
		m["items"] = propertySchema(s.Items)
	}

	return m
}
