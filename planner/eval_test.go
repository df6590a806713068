package planner

import "testing"

func TestMatchesEqualityLeaf(t *testing.T) {
	doc := map[string]any{"role": "admin", "age": 30.0}
	if !Matches(&Leaf{FieldPath: "role", Op: OpEq, Literal: "admin"}, doc) {
		t.Error("expected role=admin to match")
	}
	if Matches(&Leaf{FieldPath: "role", Op: OpEq, Literal: "user"}, doc) {
		t.Error("expected role=user not to match")
	}
}

func TestMatchesRangeLeaf(t *testing.T) {
	doc := map[string]any{"age": 30.0}
	if !Matches(&Leaf{FieldPath: "age", Op: OpGt, Literal: 25}, doc) {
		t.Error("expected age>25 to match age=30")
	}
	if Matches(&Leaf{FieldPath: "age", Op: OpLt, Literal: 25}, doc) {
		t.Error("expected age<25 not to match age=30")
	}
}

func TestMatchesAndRequiresAllChildren(t *testing.T) {
	doc := map[string]any{"role": "admin", "age": 30.0}
	filter := &And{Children: []Node{
		&Leaf{FieldPath: "role", Op: OpEq, Literal: "admin"},
		&Leaf{FieldPath: "age", Op: OpGt, Literal: 20},
	}}
	if !Matches(filter, doc) {
		t.Error("expected both conditions to match")
	}

	filter2 := &And{Children: []Node{
		&Leaf{FieldPath: "role", Op: OpEq, Literal: "admin"},
		&Leaf{FieldPath: "age", Op: OpGt, Literal: 40},
	}}
	if Matches(filter2, doc) {
		t.Error("expected AND to fail when one child fails")
	}
}

func TestMatchesOrRequiresAnyChild(t *testing.T) {
	doc := map[string]any{"role": "user"}
	filter := &Or{Children: []Node{
		&Leaf{FieldPath: "role", Op: OpEq, Literal: "admin"},
		&Leaf{FieldPath: "role", Op: OpEq, Literal: "user"},
	}}
	if !Matches(filter, doc) {
		t.Error("expected OR to match on second child")
	}
}

func TestMatchesNotNegatesChild(t *testing.T) {
	doc := map[string]any{"role": "admin"}
	filter := &Not{Child: &Leaf{FieldPath: "role", Op: OpEq, Literal: "admin"}}
	if Matches(filter, doc) {
		t.Error("expected NOT to invert a matching child")
	}
}

func TestMatchesExistsOperator(t *testing.T) {
	doc := map[string]any{"role": "admin"}
	if !Matches(&Leaf{FieldPath: "role", Op: OpExists, Literal: true}, doc) {
		t.Error("expected exists=true to match a present field")
	}
	if !Matches(&Leaf{FieldPath: "missing", Op: OpExists, Literal: false}, doc) {
		t.Error("expected exists=false to match an absent field")
	}
}

func TestMatchesInOperator(t *testing.T) {
	doc := map[string]any{"status": "active"}
	filter := &Leaf{FieldPath: "status", Op: OpIn, Literal: []any{"active", "pending"}}
	if !Matches(filter, doc) {
		t.Error("expected status in [active,pending] to match")
	}
}

func TestMatchesNestedFieldPath(t *testing.T) {
	doc := map[string]any{"address": map[string]any{"city": "Berlin"}}
	if !Matches(&Leaf{FieldPath: "address.city", Op: OpEq, Literal: "Berlin"}, doc) {
		t.Error("expected dotted path to resolve into nested object")
	}
}
