package planner

import (
	"fmt"
	"sort"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/schema"
)

// AccessKind enumerates the four access paths the selection rule can
// produce.
type AccessKind int

const (
	AccessPrimaryLookup AccessKind = iota
	AccessIndexEq
	AccessIndexScan
	AccessCollectionScan
)

func (k AccessKind) String() string {
	switch k {
	case AccessPrimaryLookup:
		return "primary_lookup"
	case AccessIndexEq:
		return "index_eq"
	case AccessIndexScan:
		return "index_scan"
	case AccessCollectionScan:
		return "collection_scan"
	default:
		return "unknown"
	}
}

// Bound is an inclusive-or-exclusive range endpoint; Present is false for an
// unbounded side.
type Bound struct {
	Present   bool
	Value     any
	Inclusive bool
}

// Plan is the deterministic output of Select: exactly one access path, plus
// whatever filter remains to be checked against each candidate document.
type Plan struct {
	Access     AccessKind
	IndexName  string // set for AccessIndexEq / AccessIndexScan
	ID         string // set for AccessPrimaryLookup
	Key        any    // set for AccessIndexEq
	Lower      Bound  // set for AccessIndexScan
	Upper      Bound  // set for AccessIndexScan
	Limit      *int
	Filter     Node // the full original filter; executor applies it residually
	Collection string
}

// Select implements the planner's deterministic access-path selection rule
// (T1): same (schema, indexes, filter, limit) always yields the same plan,
// byte-for-byte, with no statistics consulted.
func Select(sc *schema.Schema, filter Node, limit *int) (*Plan, error) {
	if err := Validate(sc, filter); err != nil {
		return nil, err
	}

	leaves := topLevelLeaves(filter)
	plan := &Plan{Filter: filter, Limit: limit, Collection: sc.Collection}

	// 1. _id = literal at the top conjunction -> primary_lookup.
	for _, l := range leaves {
		if l.FieldPath == "_id" && l.Op == OpEq {
			plan.Access = AccessPrimaryLookup
			plan.ID = fmt.Sprintf("%v", l.Literal)
			return plan, nil
		}
	}

	btreeIndexes := nonPrimaryIndexes(sc)

	// 2. Lexicographically-first btree index whose leading field has a
	// top-level equality leaf -> index_eq.
	if name, leaf := firstEqIndex(btreeIndexes, leaves); name != "" {
		plan.Access = AccessIndexEq
		plan.IndexName = name
		plan.Key = leaf.Literal
		return plan, nil
	}

	// 3. Lexicographically-first btree index whose leading field has a
	// range leaf, when a finite limit is supplied -> index_scan.
	if limit != nil {
		if name, lower, upper := firstRangeIndex(btreeIndexes, leaves); name != "" {
			plan.Access = AccessIndexScan
			plan.IndexName = name
			plan.Lower = lower
			plan.Upper = upper
			return plan, nil
		}
	}

	// 4. Finite limit with no usable index -> collection_scan(limit).
	if limit != nil {
		plan.Access = AccessCollectionScan
		return plan, nil
	}

	// 5. No provable bound.
	return nil, fmt.Errorf("%w: filter on %s has no usable index or limit", util.ErrUnboundedQuery, sc.Collection)
}

// nonPrimaryIndexes returns a schema's btree indexes sorted lexicographically
// by name, the tie-break order §4.4 requires.
func nonPrimaryIndexes(sc *schema.Schema) []schema.Index {
	var out []schema.Index
	for _, idx := range sc.Indexes {
		if idx.Kind == schema.IndexBTree {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func firstEqIndex(indexes []schema.Index, leaves []*Leaf) (string, *Leaf) {
	for _, idx := range indexes {
		for _, l := range leaves {
			if l.FieldPath == idx.FieldPath && l.Op == OpEq {
				return idx.Name, l
			}
		}
	}
	return "", nil
}

func firstRangeIndex(indexes []schema.Index, leaves []*Leaf) (string, Bound, Bound) {
	for _, idx := range indexes {
		var lower, upper Bound
		found := false
		for _, l := range leaves {
			if l.FieldPath != idx.FieldPath || !l.Op.isRange() {
				continue
			}
			found = true
			switch l.Op {
			case OpGt:
				lower = Bound{Present: true, Value: l.Literal, Inclusive: false}
			case OpGe:
				lower = Bound{Present: true, Value: l.Literal, Inclusive: true}
			case OpLt:
				upper = Bound{Present: true, Value: l.Literal, Inclusive: false}
			case OpLe:
				upper = Bound{Present: true, Value: l.Literal, Inclusive: true}
			}
		}
		if found {
			return idx.Name, lower, upper
		}
	}
	return "", Bound{}, Bound{}
}
