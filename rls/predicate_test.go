package rls

import "testing"

func TestAllowAllAcceptsEverything(t *testing.T) {
	if !AllowAll(map[string]any{"owner": "someone-else"}) {
		t.Error("expected AllowAll to accept any document")
	}
}

func TestCompileAllowsMatchingOwner(t *testing.T) {
	engine, err := NewEngine(map[string]any{"uid": "u1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	pred, err := engine.Compile(`resource.owner == request.uid`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if !pred(map[string]any{"owner": "u1"}) {
		t.Error("expected predicate to allow the owning document")
	}
	if pred(map[string]any{"owner": "u2"}) {
		t.Error("expected predicate to reject a non-owning document")
	}
}

func TestCompileEmptyExpressionDeniesEverything(t *testing.T) {
	engine, err := NewEngine(map[string]any{"uid": "u1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	pred, err := engine.Compile("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if pred(map[string]any{"owner": "u1"}) {
		t.Error("expected empty expression to deny by default")
	}
}

func TestCompileCachesProgramAcrossCalls(t *testing.T) {
	engine, err := NewEngine(map[string]any{"uid": "u1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.Compile(`resource.owner == request.uid`); err != nil {
		t.Fatalf("first compile: %v", err)
	}
	if _, err := engine.Compile(`resource.owner == request.uid`); err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if _, ok := engine.prgCache.Load(`resource.owner == request.uid`); !ok {
		t.Error("expected compiled program to be cached")
	}
}

func TestCompileRejectsInvalidExpression(t *testing.T) {
	engine, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.Compile("resource.owner ==="); err == nil {
		t.Fatal("expected compile error for malformed expression")
	}
}
