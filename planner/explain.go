package planner

import "fmt"

// CostClass is the plan's projected asymptotic cost, for `explain` output
// only — never consulted by Select.
type CostClass string

const (
	CostConstant  CostClass = "O(1)"
	CostLogarithm CostClass = "O(log n + k)"
	CostLinear    CostClass = "O(n)"
)

// Cost returns the plan's projected cost class.
func (p *Plan) Cost() CostClass {
	switch p.Access {
	case AccessPrimaryLookup:
		return CostConstant
	case AccessIndexEq, AccessIndexScan:
		return CostLogarithm
	default:
		return CostLinear
	}
}

// Explain renders stable, pure text naming the access path, its bounds, the
// index (if any), and the projected cost class. Equal plans produce
// identical explain output.
func (p *Plan) Explain() string {
	switch p.Access {
	case AccessPrimaryLookup:
		return fmt.Sprintf("primary_lookup(_id=%q) cost=%s", p.ID, p.Cost())
	case AccessIndexEq:
		return fmt.Sprintf("index_eq(index=%s, key=%v) cost=%s", p.IndexName, p.Key, p.Cost())
	case AccessIndexScan:
		return fmt.Sprintf("index_scan(index=%s, lower=%s, upper=%s) cost=%s",
			p.IndexName, explainBound(p.Lower), explainBound(p.Upper), p.Cost())
	case AccessCollectionScan:
		limit := "none"
		if p.Limit != nil {
			limit = fmt.Sprintf("%d", *p.Limit)
		}
		return fmt.Sprintf("collection_scan(limit=%s) cost=%s", limit, p.Cost())
	default:
		return "unknown plan"
	}
}

func explainBound(b Bound) string {
	if !b.Present {
		return "-inf"
	}
	if b.Inclusive {
		return fmt.Sprintf("[%v]", b.Value)
	}
	return fmt.Sprintf("(%v)", b.Value)
}
