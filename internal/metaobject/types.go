// Package metaobject stores typed key/value records in Shopify metaobjects.
package metaobject

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an ID does not name a stored metaobject.
var ErrNotFound = errors.New("metaobject: not found")

// DefaultPageSize matches the single page the admin reads.
const DefaultPageSize = 100

// Field is one key/value pair of a metaobject.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metaobject is a stored record.
type Metaobject struct {
	ID     string  `json:"id"`
	Type   string  `json:"type,omitempty"`
	Fields []Field `json:"fields"`
}

// Field returns the value stored under key.
func (m Metaobject) Field(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// FieldDefinition describes one field of a metaobject definition.
type FieldDefinition struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Definition describes a metaobject type.
type Definition struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	FieldDefinitions []FieldDefinition `json:"fieldDefinitions"`
}

// DefinitionError mirrors a definition userError; definition conflicts are reported, not raised.
type DefinitionError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// DefinitionResult is the outcome of creating a definition.
type DefinitionResult struct {
	ID         string            `json:"id,omitempty"`
	UserErrors []DefinitionError `json:"userErrors"`
}

// Store is the remote key/value store holding metaobjects.
type Store interface {
	List(ctx context.Context, typ string, first int) ([]Metaobject, error)
	Create(ctx context.Context, typ string, fields []Field) (Metaobject, error)
	Update(ctx context.Context, id string, fields []Field) (Metaobject, error)
	Delete(ctx context.Context, id string) (string, error)
	CreateDefinition(ctx context.Context, def Definition) (DefinitionResult, error)
}
