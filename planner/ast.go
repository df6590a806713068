// Package planner turns a filter expression, checked against a known
// schema, into exactly one deterministic execution plan: which access path
// to use and the bounds that drive it.
package planner

import (
	"fmt"

	"github.com/kartikbazzad/coredoc/schema"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEq     Operator = "eq"
	OpLt     Operator = "lt"
	OpLe     Operator = "le"
	OpGt     Operator = "gt"
	OpGe     Operator = "ge"
	OpIn     Operator = "in"
	OpExists Operator = "exists"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpLt, OpLe, OpGt, OpGe, OpIn, OpExists:
		return true
	}
	return false
}

// isRange reports whether the operator bounds a range scan (lt/le/gt/ge).
func (o Operator) isRange() bool {
	switch o {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Node is a filter expression: a comparison leaf or a logical connective.
type Node interface {
	node()
}

// Leaf is (field_path, operator, literal).
type Leaf struct {
	FieldPath string
	Op        Operator
	Literal   any
}

func (*Leaf) node() {}

// And is a conjunction of child nodes.
type And struct {
	Children []Node
}

func (*And) node() {}

// Or is a disjunction of child nodes.
type Or struct {
	Children []Node
}

func (*Or) node() {}

// Not negates a single child node.
type Not struct {
	Child Node
}

func (*Not) node() {}

// Validate checks that every leaf in the filter references a field declared
// in sc, and that every operator is one of the seven recognized operators.
// A filter referencing an undeclared field, or using an unrecognized
// operator, is inadmissible.
func Validate(sc *schema.Schema, n Node) error {
	if n == nil {
		return nil
	}
	switch t := n.(type) {
	case *Leaf:
		if !t.Op.valid() {
			return fmt.Errorf("planner: unrecognized operator %q", t.Op)
		}
		if !fieldDeclared(sc, t.FieldPath) {
			return fmt.Errorf("planner: field %q is not declared in schema %s", t.FieldPath, sc.ID())
		}
		return nil
	case *And:
		for _, c := range t.Children {
			if err := Validate(sc, c); err != nil {
				return err
			}
		}
		return nil
	case *Or:
		for _, c := range t.Children {
			if err := Validate(sc, c); err != nil {
				return err
			}
		}
		return nil
	case *Not:
		return Validate(sc, t.Child)
	default:
		return fmt.Errorf("planner: unknown node type %T", n)
	}
}

// fieldDeclared checks a (possibly dotted) field path against the schema's
// declared fields, recursing through object fields.
func fieldDeclared(sc *schema.Schema, path string) bool {
	if path == "_id" {
		return true
	}
	fields := sc.Fields
	parts := splitPath(path)
	for i, part := range parts {
		f, ok := fields[part]
		if !ok {
			return false
		}
		if i == len(parts)-1 {
			return true
		}
		if f.Type != schema.TypeObject {
			return false
		}
		fields = f.Fields
	}
	return true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// topLevelLeaves returns the leaves directly conjoined at the root of n:
// the node itself if it's a bare Leaf, or the flattened Leaf children of a
// (possibly nested) top-level And. Or/Not nodes anywhere in the chain break
// the flattening — a leaf buried under an Or is not part of the top
// conjunction the selection rule inspects.
func topLevelLeaves(n Node) []*Leaf {
	switch t := n.(type) {
	case *Leaf:
		return []*Leaf{t}
	case *And:
		var leaves []*Leaf
		for _, c := range t.Children {
			switch cc := c.(type) {
			case *Leaf:
				leaves = append(leaves, cc)
			case *And:
				leaves = append(leaves, topLevelLeaves(cc)...)
			}
		}
		return leaves
	default:
		return nil
	}
}
