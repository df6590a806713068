package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSchemaFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}
}

const usersSchema = `{
  "collection": "users",
  "version": 1,
  "fields": {
    "_id": {"type": "string", "required": true},
    "email": {"type": "string", "required": true},
    "age": {"type": "int", "required": false}
  },
  "indexes": [
    {"name": "by_id", "kind": "primary", "field_path": "_id"},
    {"name": "by_email", "kind": "btree", "field_path": "email"}
  ]
}`

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "users.json", usersSchema)

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s, ok := reg.Get("users")
	if !ok {
		t.Fatal("expected \"users\" collection to be registered")
	}
	if s.Version != 1 {
		t.Errorf("expected version 1, got %d", s.Version)
	}
	if len(s.Indexes) != 2 {
		t.Errorf("expected 2 indexes, got %d", len(s.Indexes))
	}
}

func TestLoadRegistryMissingDirIsFatal(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing schema directory")
	}
}

func TestLoadRegistryEmptyDirIsFatal(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for empty schema directory")
	}
}

func TestLoadRegistryRejectsMissingIDField(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "bad.json", `{
		"collection": "bad",
		"version": 1,
		"fields": {"name": {"type": "string", "required": true}},
		"indexes": [{"name": "by_id", "kind": "primary", "field_path": "name"}]
	}`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected fatal error for schema missing required string \"_id\"")
	}
}

func TestLoadRegistryRejectsMissingPrimaryIndex(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "bad.json", `{
		"collection": "bad",
		"version": 1,
		"fields": {"_id": {"type": "string", "required": true}},
		"indexes": []
	}`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected fatal error for schema with no primary index")
	}
}

func TestLoadRegistryRejectsMalformedDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "bad.json", `{"version": 1}`) // missing "collection", "fields"

	if _, err := Load(dir); err == nil {
		t.Fatal("expected descriptor validation failure")
	}
}

func TestLoadRegistryRejectsDuplicateCollection(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "users.json", usersSchema)
	writeSchemaFile(t, dir, "users2.json", usersSchema)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for collection declared twice")
	}
}

func TestLoadRegistryNestedObjectAndArrayFields(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "orders.json", `{
		"collection": "orders",
		"version": 1,
		"fields": {
			"_id": {"type": "string", "required": true},
			"shipping": {
				"type": "object",
				"required": true,
				"fields": {
					"city": {"type": "string", "required": true}
				}
			},
			"items": {
				"type": "array",
				"required": true,
				"elem": {"type": "string", "required": true}
			}
		},
		"indexes": [{"name": "by_id", "kind": "primary", "field_path": "_id"}]
	}`)

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, _ := reg.Get("orders")
	if s.Fields["shipping"].Type != TypeObject {
		t.Error("expected shipping to be an object field")
	}
	if s.Fields["items"].Elem.Type != TypeString {
		t.Error("expected items elements to be strings")
	}
}
