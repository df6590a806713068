package schema

import "testing"

func usersTestSchema() *Schema {
	return &Schema{
		Collection: "users",
		Version:    1,
		Fields: map[string]Field{
			"_id":   {Name: "_id", Type: TypeString, Required: true},
			"email": {Name: "email", Type: TypeString, Required: true},
			"age":   {Name: "age", Type: TypeInt, Required: false},
			"address": {
				Name: "address", Type: TypeObject, Required: false,
				Fields: map[string]Field{
					"city": {Name: "city", Type: TypeString, Required: true},
				},
			},
			"tags": {
				Name: "tags", Type: TypeArray, Required: false,
				Elem: &Field{Type: TypeString, Required: true},
			},
		},
	}
}

func TestValidateDocumentAccepts(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{
		"_id":   "u1",
		"email": "a@example.com",
		"age":   30,
		"address": map[string]any{
			"city": "Berlin",
		},
		"tags": []any{"a", "b"},
	}
	if err := ValidateDocument(s, doc); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
}

func TestValidateDocumentRejectsMissingID(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{"email": "a@example.com"}
	if err := ValidateDocument(s, doc); err == nil {
		t.Fatal("expected error for missing _id")
	}
}

func TestValidateDocumentRejectsUnknownField(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{"_id": "u1", "email": "a@example.com", "nickname": "x"}
	err := ValidateDocument(s, doc)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Path != "nickname" {
		t.Errorf("expected path %q, got %q", "nickname", ve.Path)
	}
}

func TestValidateDocumentRejectsMissingRequiredField(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{"_id": "u1"}
	if err := ValidateDocument(s, doc); err == nil {
		t.Fatal("expected error for missing required field \"email\"")
	}
}

func TestValidateDocumentRejectsWrongType(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{"_id": "u1", "email": "a@example.com", "age": "not-a-number"}
	if err := ValidateDocument(s, doc); err == nil {
		t.Fatal("expected error for wrong field type")
	}
}

func TestValidateDocumentRecursesIntoNestedObject(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{
		"_id":   "u1",
		"email": "a@example.com",
		"address": map[string]any{
			"unknown_nested": "x",
		},
	}
	err := ValidateDocument(s, doc)
	if err == nil {
		t.Fatal("expected error for unknown nested field")
	}
	ve := err.(*ValidationError)
	if ve.Path != "address.unknown_nested" {
		t.Errorf("expected nested path, got %q", ve.Path)
	}
}

func TestValidateDocumentRecursesIntoArrayElements(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{
		"_id":   "u1",
		"email": "a@example.com",
		"tags":  []any{"ok", 42},
	}
	err := ValidateDocument(s, doc)
	if err == nil {
		t.Fatal("expected error for wrongly-typed array element")
	}
	ve := err.(*ValidationError)
	if ve.Path != "tags[1]" {
		t.Errorf("expected array index in path, got %q", ve.Path)
	}
}

func TestValidateDocumentRejectsEmptyID(t *testing.T) {
	s := usersTestSchema()
	doc := map[string]any{"_id": "", "email": "a@example.com"}
	if err := ValidateDocument(s, doc); err == nil {
		t.Fatal("expected error for empty _id")
	}
}
