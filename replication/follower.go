package replication

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/mvcc"
	"github.com/kartikbazzad/coredoc/wire"
)

// Follower applies a stream of WAL records shipped from the authority, in
// order, to its local WAL and MVCC store. It halts fatally on the first
// checksum mismatch rather than attempt to continue on a possibly torn or
// forged record (invariant R1).
type Follower struct {
	node  *Node
	wal   *wal.WAL
	store *mvcc.Store
	audit *AuditLogger

	mu      sync.Mutex
	waiters map[wal.LSN][]chan struct{}
}

// NewFollower builds a Follower that applies shipped records to w and
// store.
func NewFollower(node *Node, w *wal.WAL, store *mvcc.Store, audit *AuditLogger) *Follower {
	return &Follower{
		node:    node,
		wal:     w,
		store:   store,
		audit:   audit,
		waiters: make(map[wal.LSN][]chan struct{}),
	}
}

// Run performs the handshake over conn and then applies records until the
// connection closes, ctx is canceled, or a fatal record error occurs. A
// returned error on the fatal paths (checksum mismatch, authority conflict)
// should be treated by the caller as cause to halt the process, per spec.
func (f *Follower) Run(ctx context.Context, conn net.Conn) error {
	// CurrentLSN is the lsn the next local append would get; the last one
	// applied is the one before it.
	req := wire.HandshakeRequest{NodeID: f.node.ID(), LastAppliedLSN: uint64(f.wal.CurrentLSN()) - 1}
	if err := wire.WriteMessage(conn, wire.OpHandshake, req); err != nil {
		return err
	}

	header, err := wire.ReadHeader(conn)
	if err != nil {
		return err
	}
	var reply wire.HandshakeReply
	if err := wire.ReadBody(conn, header.Length, &reply); err != nil {
		return err
	}
	if !reply.Accept {
		return fmt.Errorf("replication: handshake rejected: %s", reply.Reason)
	}
	if err := f.node.observeGeneration(reply.Generation); err != nil {
		f.audit.Log(EventAuthorityConflict, f.node.ID(), f.node.Generation(), map[string]any{"remote_generation": reply.Generation})
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := wire.ReadHeader(conn)
		if err != nil {
			return err
		}
		if header.OpCode != wire.OpRecord {
			return fmt.Errorf("replication: unexpected opcode %d from authority", header.OpCode)
		}
		var frame wire.RecordFrame
		if err := wire.ReadBody(conn, header.Length, &frame); err != nil {
			return err
		}
		if err := f.applyFrame(frame); err != nil {
			f.audit.Log(EventFollowerHalted, f.node.ID(), f.node.Generation(), map[string]any{"error": err.Error()})
			return err
		}
	}
}

func (f *Follower) applyFrame(frame wire.RecordFrame) error {
	kind := wal.Kind(frame.Kind)
	if frameChecksum(kind, frame.Payload) != frame.Checksum {
		return fmt.Errorf("%w: lsn=%d", util.ErrWALCorrupt, frame.LSN)
	}

	lsn, err := f.wal.Append(kind, frame.Payload)
	if err != nil {
		return err
	}
	if uint64(lsn) != frame.LSN {
		return fmt.Errorf("replication: lsn mismatch applying shipped record: local=%d remote=%d", lsn, frame.LSN)
	}
	if err := f.store.Apply(lsn, kind, frame.Payload); err != nil {
		return err
	}

	f.notifyWaiters(lsn)
	return nil
}

// WaitFor blocks until lsn has been applied locally, or returns
// util.ErrStaleReplica if ctx is done first. This is the read-your-writes
// primitive a follower-facing read path uses to honor a caller's required
// lsn within a deadline.
func (f *Follower) WaitFor(ctx context.Context, lsn wal.LSN) error {
	if f.store.LastApplied() >= lsn {
		return nil
	}

	ch := make(chan struct{})
	f.mu.Lock()
	f.waiters[lsn] = append(f.waiters[lsn], ch)
	f.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		f.removeWaiter(lsn, ch)
		return fmt.Errorf("%w: lsn=%d", util.ErrStaleReplica, lsn)
	}
}

func (f *Follower) removeWaiter(lsn wal.LSN, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chans := f.waiters[lsn]
	for i, c := range chans {
		if c == ch {
			f.waiters[lsn] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(f.waiters[lsn]) == 0 {
		delete(f.waiters, lsn)
	}
}

func (f *Follower) notifyWaiters(upTo wal.LSN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for lsn, chans := range f.waiters {
		if lsn > upTo {
			continue
		}
		for _, ch := range chans {
			close(ch)
		}
		delete(f.waiters, lsn)
	}
}
