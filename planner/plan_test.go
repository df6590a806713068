package planner

import (
	"errors"
	"testing"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/schema"
)

func peopleSchema() *schema.Schema {
	return &schema.Schema{
		Collection: "people",
		Version:    1,
		Fields: map[string]schema.Field{
			"_id":  {Name: "_id", Type: schema.TypeString, Required: true},
			"age":  {Name: "age", Type: schema.TypeInt, Required: false},
			"name": {Name: "name", Type: schema.TypeString, Required: false},
		},
		Indexes: []schema.Index{
			{Name: "by_id", Kind: schema.IndexPrimary, FieldPath: "_id"},
			{Name: "by_age", Kind: schema.IndexBTree, FieldPath: "age"},
			{Name: "by_name", Kind: schema.IndexBTree, FieldPath: "name"},
		},
	}
}

func TestSelectPrimaryLookupOnIDEquality(t *testing.T) {
	sc := peopleSchema()
	filter := &Leaf{FieldPath: "_id", Op: OpEq, Literal: "u1"}

	plan, err := Select(sc, filter, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if plan.Access != AccessPrimaryLookup || plan.ID != "u1" {
		t.Fatalf("expected primary_lookup(u1), got %+v", plan)
	}
}

func TestSelectIndexEqPicksLexicographicallyFirstIndex(t *testing.T) {
	sc := peopleSchema()
	filter := &And{Children: []Node{
		&Leaf{FieldPath: "age", Op: OpEq, Literal: 30},
		&Leaf{FieldPath: "name", Op: OpEq, Literal: "x"},
	}}

	plan, err := Select(sc, filter, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if plan.Access != AccessIndexEq || plan.IndexName != "by_age" {
		t.Fatalf("expected index_eq(by_age), got %+v", plan)
	}

	// Same inputs, second call, byte-identical explain text (determinism).
	plan2, _ := Select(sc, filter, nil)
	if plan.Explain() != plan2.Explain() {
		t.Fatalf("expected identical explain text across calls: %q vs %q", plan.Explain(), plan2.Explain())
	}
}

func TestSelectIndexScanRequiresLimit(t *testing.T) {
	sc := peopleSchema()
	filter := &Leaf{FieldPath: "age", Op: OpGt, Literal: 18}

	if _, err := Select(sc, filter, nil); err == nil {
		t.Fatal("expected unbounded query error without a limit")
	}

	limit := 10
	plan, err := Select(sc, filter, &limit)
	if err != nil {
		t.Fatalf("select with limit: %v", err)
	}
	if plan.Access != AccessIndexScan || plan.IndexName != "by_age" {
		t.Fatalf("expected index_scan(by_age), got %+v", plan)
	}
	if !plan.Lower.Present || plan.Lower.Inclusive {
		t.Fatalf("expected exclusive lower bound from gt, got %+v", plan.Lower)
	}
}

func TestSelectCollectionScanWhenNoIndexUsable(t *testing.T) {
	sc := peopleSchema()
	filter := &Leaf{FieldPath: "age", Op: OpIn, Literal: []any{18, 21}}

	limit := 5
	plan, err := Select(sc, filter, &limit)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if plan.Access != AccessCollectionScan {
		t.Fatalf("expected collection_scan, got %+v", plan)
	}
}

func TestSelectFailsUnboundedWithoutLimitOrIndex(t *testing.T) {
	sc := peopleSchema()
	filter := &Leaf{FieldPath: "age", Op: OpIn, Literal: []any{18, 21}}

	_, err := Select(sc, filter, nil)
	if err == nil {
		t.Fatal("expected unbounded query error")
	}
	if !errors.Is(err, util.ErrUnboundedQuery) {
		t.Fatalf("expected ErrUnboundedQuery, got %v", err)
	}
}

func TestSelectRejectsUndeclaredField(t *testing.T) {
	sc := peopleSchema()
	filter := &Leaf{FieldPath: "nickname", Op: OpEq, Literal: "x"}

	if _, err := Select(sc, filter, nil); err == nil {
		t.Fatal("expected error for filter on undeclared field")
	}
}

func TestSelectDeterministicAcrossRepeatedCalls(t *testing.T) {
	sc := peopleSchema()
	filter := &And{Children: []Node{
		&Leaf{FieldPath: "age", Op: OpEq, Literal: 30},
		&Leaf{FieldPath: "name", Op: OpEq, Literal: "x"},
	}}

	var explains []string
	for i := 0; i < 5; i++ {
		plan, err := Select(sc, filter, nil)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		explains = append(explains, plan.Explain())
	}
	for _, e := range explains[1:] {
		if e != explains[0] {
			t.Fatalf("expected identical plans across repeated calls, got %q and %q", explains[0], e)
		}
	}
}
