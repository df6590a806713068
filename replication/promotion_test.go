package replication

import (
	"fmt"
	"testing"

	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/wire"
)

// fakeTransport drives Promoter against in-process Nodes, skipping real
// sockets so the promotion state machine can be tested without a listener.
type fakeTransport struct {
	nodes  map[string]*Node
	wals   map[string]*wal.WAL
	drains map[string]DrainFunc
}

func (f *fakeTransport) MarkerStatus(addr string) (wire.MarkerStatusReply, error) {
	n, ok := f.nodes[addr]
	if !ok {
		return wire.MarkerStatusReply{}, fmt.Errorf("no such node %s", addr)
	}
	return wire.MarkerStatusReply{
		Role:            uint8(n.Role()),
		Generation:      n.Generation(),
		AuthorityNodeID: n.AuthorityNodeID(),
		DurableLSN:      uint64(f.wals[addr].CurrentLSN()),
	}, nil
}

func (f *fakeTransport) PromoteValidate(addr string, req wire.PromotionValidateRequest) (wire.PromotionValidateReply, error) {
	n, ok := f.nodes[addr]
	if !ok {
		return wire.PromotionValidateReply{}, fmt.Errorf("no such node %s", addr)
	}
	lastApplied := uint64(f.wals[addr].CurrentLSN())
	reply := wire.PromotionValidateReply{LastAppliedLSN: lastApplied}
	switch {
	case lastApplied < req.DurableLSN:
		reply.Reason = "target lags"
	case n.Generation() != req.ExpectedGeneration:
		reply.Reason = "generation mismatch"
	default:
		reply.OK = true
	}
	return reply, nil
}

func (f *fakeTransport) Drain(addr string) (wire.DrainReply, error) {
	drain, ok := f.drains[addr]
	if !ok {
		return wire.DrainReply{}, fmt.Errorf("no drain func for %s", addr)
	}
	return wire.DrainReply{DurableLSN: uint64(drain())}, nil
}

func (f *fakeTransport) PromoteMark(addr string, req wire.PromotionMarkRequest) (wire.PromotionMarkReply, error) {
	n, ok := f.nodes[addr]
	if !ok {
		return wire.PromotionMarkReply{}, fmt.Errorf("no such node %s", addr)
	}
	if req.NewGeneration <= n.Generation() {
		return wire.PromotionMarkReply{Reason: "generation does not advance"}, nil
	}
	if err := n.becomeAuthority(req.NewGeneration); err != nil {
		return wire.PromotionMarkReply{Reason: err.Error()}, nil
	}
	return wire.PromotionMarkReply{OK: true}, nil
}

func (f *fakeTransport) PromoteTransition(addr string, req wire.PromotionTransitionRequest) (wire.PromotionTransitionReply, error) {
	n, ok := f.nodes[addr]
	if !ok {
		return wire.PromotionTransitionReply{}, fmt.Errorf("no such node %s", addr)
	}
	if err := n.stepDown(req.NewAuthorityNodeID, req.NewGeneration); err != nil {
		return wire.PromotionTransitionReply{}, nil
	}
	return wire.PromotionTransitionReply{OK: true}, nil
}

func bootNodeAt(t *testing.T, dir, nodeID string, role Role, generation uint64, authorityID string) *Node {
	t.Helper()
	if err := WriteMarker(MarkerPath(dir), &Marker{Role: role, Generation: generation, AuthorityNodeID: authorityID}); err != nil {
		t.Fatalf("seed marker for %s: %v", nodeID, err)
	}
	n, err := Boot(Config{NodeID: nodeID, DataDir: dir}, DiscardAuditLogger())
	if err != nil {
		t.Fatalf("boot %s: %v", nodeID, err)
	}
	return n
}

func openTestWAL(t *testing.T) *wal.WAL {
	t.Helper()
	w, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestPromoteHappyPathReachesCompleted(t *testing.T) {
	authorityDir, targetDir := t.TempDir(), t.TempDir()
	authorityNode := bootNodeAt(t, authorityDir, "n1", RoleAuthority, 5, "n1")
	targetNode := bootNodeAt(t, targetDir, "n2", RoleFollower, 5, "n1")

	authorityWAL := openTestWAL(t)
	targetWAL := openTestWAL(t)
	for i := 0; i < 3; i++ {
		if _, err := authorityWAL.Append(wal.KindInsert, []byte("x")); err != nil {
			t.Fatalf("seed authority wal: %v", err)
		}
		if _, err := targetWAL.Append(wal.KindInsert, []byte("x")); err != nil {
			t.Fatalf("seed target wal: %v", err)
		}
	}

	transport := &fakeTransport{
		nodes: map[string]*Node{"authority": authorityNode, "target": targetNode},
		wals:  map[string]*wal.WAL{"authority": authorityWAL, "target": targetWAL},
		drains: map[string]DrainFunc{
			"authority": func() wal.LSN { return authorityWAL.CurrentLSN() },
		},
	}

	var states []PromotionState
	promoter := NewPromoter(transport, DiscardAuditLogger(), func(s PromotionState) { states = append(states, s) })

	final, err := promoter.Promote("authority", "target")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if final != StateCompleted {
		t.Fatalf("expected StateCompleted, got %s", final)
	}
	if !targetNode.IsAuthority() || targetNode.Generation() != 6 {
		t.Fatalf("expected target to become authority at generation 6, got role=%s gen=%d", targetNode.Role(), targetNode.Generation())
	}
	if authorityNode.IsAuthority() || authorityNode.AuthorityNodeID() != "target" {
		t.Fatalf("expected old authority to step down to target, got role=%s authority=%s", authorityNode.Role(), authorityNode.AuthorityNodeID())
	}

	wantStates := []PromotionState{StateValidating, StateDraining, StateMarking, StateTransitioning, StateCompleted}
	if len(states) != len(wantStates) {
		t.Fatalf("expected states %v, got %v", wantStates, states)
	}
	for i, s := range wantStates {
		if states[i] != s {
			t.Fatalf("expected state %d to be %s, got %s", i, s, states[i])
		}
	}
}

func TestPromoteFailsWhenTargetHasNotCaughtUp(t *testing.T) {
	authorityDir, targetDir := t.TempDir(), t.TempDir()
	authorityNode := bootNodeAt(t, authorityDir, "n1", RoleAuthority, 1, "n1")
	targetNode := bootNodeAt(t, targetDir, "n2", RoleFollower, 1, "n1")

	authorityWAL := openTestWAL(t)
	targetWAL := openTestWAL(t)
	if _, err := authorityWAL.Append(wal.KindInsert, []byte("x")); err != nil {
		t.Fatalf("seed authority wal: %v", err)
	}
	// Target's wal is empty: it has not caught up.

	transport := &fakeTransport{
		nodes:  map[string]*Node{"authority": authorityNode, "target": targetNode},
		wals:   map[string]*wal.WAL{"authority": authorityWAL, "target": targetWAL},
		drains: map[string]DrainFunc{"authority": func() wal.LSN { return authorityWAL.CurrentLSN() }},
	}

	promoter := NewPromoter(transport, DiscardAuditLogger(), nil)
	final, err := promoter.Promote("authority", "target")
	if err == nil {
		t.Fatal("expected promotion to fail when target lags")
	}
	if final != StateFailed {
		t.Fatalf("expected StateFailed, got %s", final)
	}
	if targetNode.IsAuthority() {
		t.Fatal("target must not become authority when validation fails")
	}
	if !authorityNode.IsAuthority() {
		t.Fatal("authority must remain authority when promotion fails before Draining")
	}
}
