// Package rls supplies the executor's row-level-security predicate type: an
// opaque callable the executor evaluates against every candidate document
// before it may be returned, plus a CEL-backed constructor for building one
// from a string expression.
package rls

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Predicate is evaluated once per candidate document; the executor treats
// it as a black box and never returns a document it rejects.
type Predicate func(resource map[string]any) bool

// AllowAll is the identity predicate: it accepts every document, used on
// service-role execution paths that bypass row-level security entirely.
func AllowAll(map[string]any) bool { return true }

// Engine compiles and caches CEL programs for row-level-security
// expressions evaluated against a request/resource environment.
type Engine struct {
	env      *cel.Env
	request  map[string]any
	prgCache sync.Map // expression -> cel.Program
}

// NewEngine creates an Engine whose CEL programs see two variables:
// `request` (the caller's auth context and parameters) and `resource` (the
// candidate document).
func NewEngine(request map[string]any) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("request", decls.NewMapType(decls.String, decls.Dyn)),
			decls.NewVar("resource", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("rls: create cel environment: %w", err)
	}
	return &Engine{env: env, request: request}, nil
}

// Compile builds a Predicate from a CEL boolean expression. Compilation
// happens once per distinct expression; the resulting program is cached and
// reevaluated cheaply for every subsequent call.
func (e *Engine) Compile(expression string) (Predicate, error) {
	if expression == "" {
		return func(map[string]any) bool { return false }, nil
	}

	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	return func(resource map[string]any) bool {
		out, _, err := prg.Eval(map[string]any{
			"request":  e.request,
			"resource": resource,
		})
		if err != nil {
			return false
		}
		result, ok := out.Value().(bool)
		return ok && result
	}, nil
}

func (e *Engine) program(expression string) (cel.Program, error) {
	if cached, ok := e.prgCache.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rls: compile %q: %w", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rls: build program for %q: %w", expression, err)
	}
	e.prgCache.Store(expression, prg)
	return prg, nil
}
