package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// descriptorMetaSchema is the fixed JSON Schema every on-disk schema
// descriptor file must satisfy before coredoc parses it into its own Schema
// type. It pins down field names and the allowed type/kind enums; it does
// not (and cannot) express the recursive object{...}/array<T> shape that is
// coredoc's own, which validate.go enforces separately.
const descriptorMetaSchema = `{
  "type": "object",
  "required": ["collection", "version", "fields"],
  "properties": {
    "collection": {"type": "string", "minLength": 1},
    "version": {"type": "integer", "minimum": 1},
    "fields": {
      "type": "object",
      "minProperties": 1
    },
    "indexes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "kind", "field_path"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "kind": {"type": "string", "enum": ["primary", "btree"]},
          "field_path": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var metaSchemaLoader = gojsonschema.NewStringLoader(descriptorMetaSchema)

// Registry is the set of schemas loaded from a directory at boot. It is
// immutable after Load returns: no schema in a live registry is ever
// mutated or replaced.
type Registry struct {
	byCollection map[string]*Schema
}

// Load reads every *.json file in dir, validates its descriptor shape and
// its internal structure, and returns an immutable registry. A missing or
// empty directory, or any schema failing validation, is a fatal startup
// error — the caller is expected to exit the process before opening the
// WAL, per the registry's "no silent defaulting" contract.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schema registry: cannot read schema directory %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("schema registry: no schema files found in %q", dir)
	}

	reg := &Registry{byCollection: make(map[string]*Schema, len(files))}
	for _, path := range files {
		s, err := loadOne(path)
		if err != nil {
			return nil, fmt.Errorf("schema registry: %s: %w", path, err)
		}
		if existing, ok := reg.byCollection[s.Collection]; ok {
			return nil, fmt.Errorf("schema registry: collection %q declared twice (%s@%d and %s@%d)",
				s.Collection, s.Collection, existing.Version, s.Collection, s.Version)
		}
		reg.byCollection[s.Collection] = s
	}
	return reg, nil
}

func loadOne(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(metaSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("descriptor validation error: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return nil, fmt.Errorf("malformed schema descriptor: %s", strings.Join(issues, "; "))
	}

	var raw2 struct {
		Collection string                     `json:"collection"`
		Version    int                        `json:"version"`
		Fields     map[string]json.RawMessage `json:"fields"`
		Indexes    []Index                    `json:"indexes"`
	}
	if err := json.Unmarshal(raw, &raw2); err != nil {
		return nil, fmt.Errorf("malformed schema JSON: %w", err)
	}

	fields := make(map[string]Field, len(raw2.Fields))
	for name, fieldRaw := range raw2.Fields {
		f, err := parseField(name, fieldRaw)
		if err != nil {
			return nil, err
		}
		fields[name] = f
	}

	s := &Schema{
		Collection: raw2.Collection,
		Version:    raw2.Version,
		Fields:     fields,
		Indexes:    raw2.Indexes,
	}
	if err := validateSchemaStructure(s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseField(name string, raw json.RawMessage) (Field, error) {
	var decoded struct {
		Type     FieldType                  `json:"type"`
		Required bool                       `json:"required"`
		Fields   map[string]json.RawMessage `json:"fields"`
		Elem     json.RawMessage            `json:"elem"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}

	f := Field{Name: name, Type: decoded.Type, Required: decoded.Required}
	switch decoded.Type {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		// Scalar: nothing further to parse.
	case TypeObject:
		f.Fields = make(map[string]Field, len(decoded.Fields))
		for nested, nestedRaw := range decoded.Fields {
			nf, err := parseField(nested, nestedRaw)
			if err != nil {
				return Field{}, err
			}
			f.Fields[nested] = nf
		}
	case TypeArray:
		if len(decoded.Elem) == 0 {
			return Field{}, fmt.Errorf("field %q: array type requires \"elem\"", name)
		}
		elem, err := parseField(name+"[]", decoded.Elem)
		if err != nil {
			return Field{}, err
		}
		f.Elem = &elem
	default:
		return Field{}, fmt.Errorf("field %q: unknown type %q", name, decoded.Type)
	}
	return f, nil
}

// validateSchemaStructure enforces I2 ("_id is present, string-typed, and
// required in every schema") and checks every declared index points at a
// field that actually exists in the schema.
func validateSchemaStructure(s *Schema) error {
	idField, ok := s.Fields["_id"]
	if !ok {
		return fmt.Errorf("schema %s: missing required field \"_id\"", s.ID())
	}
	if idField.Type != TypeString || !idField.Required {
		return fmt.Errorf("schema %s: \"_id\" must be a required string field", s.ID())
	}

	hasPrimary := false
	for _, idx := range s.Indexes {
		if idx.Kind == IndexPrimary {
			hasPrimary = true
		}
		if _, ok := s.Fields[topLevelField(idx.FieldPath)]; !ok {
			return fmt.Errorf("schema %s: index %q references unknown field %q", s.ID(), idx.Name, idx.FieldPath)
		}
	}
	if !hasPrimary {
		return fmt.Errorf("schema %s: no primary index declared", s.ID())
	}
	return nil
}

func topLevelField(fieldPath string) string {
	if i := strings.IndexByte(fieldPath, '.'); i >= 0 {
		return fieldPath[:i]
	}
	return fieldPath
}

// Get returns the schema for collection, per the registry's
// get(collection) -> schema contract.
func (r *Registry) Get(collection string) (*Schema, bool) {
	s, ok := r.byCollection[collection]
	return s, ok
}

// Collections returns every collection name the registry knows about.
func (r *Registry) Collections() []string {
	names := make([]string, 0, len(r.byCollection))
	for name := range r.byCollection {
		names = append(names, name)
	}
	return names
}
