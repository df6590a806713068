package planner

import "fmt"

// Matches evaluates n against doc directly (not via an access path); the
// executor uses this as the residual filter check after narrowing
// candidates through whatever access path the plan chose — an index_eq on
// one field does not excuse the executor from checking every other leaf.
func Matches(n Node, doc map[string]any) bool {
	if n == nil {
		return true
	}
	switch t := n.(type) {
	case *Leaf:
		return matchLeaf(t, doc)
	case *And:
		for _, c := range t.Children {
			if !Matches(c, doc) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range t.Children {
			if Matches(c, doc) {
				return true
			}
		}
		return false
	case *Not:
		return !Matches(t.Child, doc)
	default:
		return false
	}
}

func matchLeaf(l *Leaf, doc map[string]any) bool {
	val, exists := fieldValue(doc, l.FieldPath)
	if l.Op == OpExists {
		want, _ := l.Literal.(bool)
		return exists == want
	}
	if !exists {
		return false
	}
	switch l.Op {
	case OpEq:
		return compareEqual(val, l.Literal)
	case OpLt:
		return compareOrdered(val, l.Literal) < 0
	case OpLe:
		return compareOrdered(val, l.Literal) <= 0
	case OpGt:
		return compareOrdered(val, l.Literal) > 0
	case OpGe:
		return compareOrdered(val, l.Literal) >= 0
	case OpIn:
		items, ok := l.Literal.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if compareEqual(val, item) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func fieldValue(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func compareEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareOrdered returns -1, 0, 1 per standard comparison semantics,
// preferring numeric comparison and falling back to string comparison for
// non-numeric values.
func compareOrdered(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
