package replication

import (
	"net"
	"testing"
	"time"
)

func TestFollowerPoolAttachThenDetach(t *testing.T) {
	pool := NewFollowerPool(time.Minute)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	session := pool.Attach("follower-a", serverConn, 10)
	if session.NodeID != "follower-a" || session.LastAppliedLSN() != 10 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if got := pool.Stats().Attached; got != 1 {
		t.Fatalf("expected 1 attached session, got %d", got)
	}

	pool.Detach("follower-a")
	if got := pool.Stats().Attached; got != 0 {
		t.Fatalf("expected 0 attached sessions after detach, got %d", got)
	}
}

func TestFollowerPoolAttachReplacesPriorSessionForSameNode(t *testing.T) {
	pool := NewFollowerPool(time.Minute)
	_, firstConn := net.Pipe()
	_, secondConn := net.Pipe()

	pool.Attach("follower-a", firstConn, 1)
	pool.Attach("follower-a", secondConn, 5)

	sessions := pool.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected exactly one session for follower-a, got %d", len(sessions))
	}
	if sessions[0].LastAppliedLSN() != 5 {
		t.Fatalf("expected the newer session to have replaced the old one, got lsn=%d", sessions[0].LastAppliedLSN())
	}

	// The first connection should have been closed by the replacement; writes
	// to it now fail rather than silently hanging forever.
	errCh := make(chan error, 1)
	go func() {
		_, err := firstConn.Write([]byte("x"))
		errCh <- err
	}()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected write to replaced connection to fail")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replaced connection to be closed")
	}
}

func TestFollowerPoolPruneStaleClosesIdleSessions(t *testing.T) {
	pool := NewFollowerPool(10 * time.Millisecond)
	_, conn := net.Pipe()
	pool.Attach("follower-a", conn, 0)

	time.Sleep(20 * time.Millisecond)
	pool.pruneStale()

	if got := pool.Stats().Attached; got != 0 {
		t.Fatalf("expected stale session to be pruned, got %d attached", got)
	}
}

func TestFollowerPoolStartStopIsIdempotent(t *testing.T) {
	pool := NewFollowerPool(time.Millisecond)
	pool.Start()
	pool.Start()
	pool.Stop()
	pool.Stop()
}

func TestFollowerPoolCloseClosesAllSessions(t *testing.T) {
	pool := NewFollowerPool(time.Minute)
	_, connA := net.Pipe()
	_, connB := net.Pipe()
	pool.Attach("follower-a", connA, 0)
	pool.Attach("follower-b", connB, 0)

	if err := pool.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := pool.Stats().Attached; got != 0 {
		t.Fatalf("expected no sessions after close, got %d", got)
	}
}

func TestFollowerSessionIdleForReflectsLastTouch(t *testing.T) {
	_, conn := net.Pipe()
	pool := NewFollowerPool(time.Minute)
	session := pool.Attach("follower-a", conn, 1)

	if session.IdleFor() > time.Second {
		t.Fatalf("expected a freshly attached session to report low idle time, got %s", session.IdleFor())
	}
	session.touch(2)
	if session.LastAppliedLSN() != 2 {
		t.Fatalf("expected touch to advance last applied lsn, got %d", session.LastAppliedLSN())
	}
}
