// Package schema implements coredoc's load-once-at-boot schema registry:
// field type definitions, index declarations, and recursive document
// validation against them.
package schema

import "fmt"

// FieldType enumerates every type a schema field may declare.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Field describes one recognized field of a schema: its type, whether it is
// required, and — for object/array fields — the nested shape it recurses
// into.
type Field struct {
	Name     string           `json:"name"`
	Type     FieldType        `json:"type"`
	Required bool             `json:"required"`
	Fields   map[string]Field `json:"fields,omitempty"`    // populated when Type == TypeObject
	Elem     *Field           `json:"elem,omitempty"`       // populated when Type == TypeArray
}

// IndexKind enumerates the supported secondary index backends.
type IndexKind string

const (
	IndexPrimary IndexKind = "primary"
	IndexBTree   IndexKind = "btree"
)

// Index describes one declared index: its name, storage kind, and the
// field path it is keyed on.
type Index struct {
	Name      string    `json:"name"`
	Kind      IndexKind `json:"kind"`
	FieldPath string    `json:"field_path"`
}

// Schema is (collection, version, fields, indexes), immutable once loaded.
type Schema struct {
	Collection string           `json:"collection"`
	Version    int              `json:"version"`
	Fields     map[string]Field `json:"fields"`
	Indexes    []Index          `json:"indexes"`
}

// ID returns the stable (collection, version) tag recorded on every
// document this schema validates, per the "schema_id tag" in the data model.
func (s *Schema) ID() string {
	return fmt.Sprintf("%s@%d", s.Collection, s.Version)
}
