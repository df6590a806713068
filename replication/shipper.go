package replication

import (
	"context"
	"fmt"
	"hash/crc32"
	"net"
	"time"

	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/wire"
	"github.com/panjf2000/ants/v2"
)

var frameCRCTable = crc32.MakeTable(crc32.Castagnoli)

// frameChecksum mirrors the on-disk WAL frame's trailing CRC32C, computed
// over kind+payload, so a follower can verify a shipped record exactly the
// way it would verify one read from its own disk.
func frameChecksum(kind wal.Kind, payload []byte) uint32 {
	body := make([]byte, 1+len(payload))
	body[0] = byte(kind)
	copy(body[1:], payload)
	return crc32.Checksum(body, frameCRCTable)
}

// Shipper streams WAL records to attached followers, bounding concurrent
// per-follower shipping sessions with a worker pool rather than spawning an
// unbounded goroutine per connection.
type Shipper struct {
	wal     *wal.WAL
	node    *Node
	pool    *FollowerPool
	workers *ants.Pool
	audit   *AuditLogger
	poll    time.Duration
}

// NewShipper builds a Shipper bounded to maxConcurrentFollowers simultaneous
// shipping sessions.
func NewShipper(w *wal.WAL, node *Node, pool *FollowerPool, audit *AuditLogger, maxConcurrentFollowers int) (*Shipper, error) {
	workers, err := ants.NewPool(maxConcurrentFollowers, ants.WithPanicHandler(func(v any) {
		audit.Log(EventFollowerHalted, node.ID(), node.Generation(), map[string]any{"panic": fmt.Sprint(v)})
	}))
	if err != nil {
		return nil, fmt.Errorf("replication: create shipper worker pool: %w", err)
	}
	return &Shipper{wal: w, node: node, pool: pool, workers: workers, audit: audit, poll: 20 * time.Millisecond}, nil
}

// Accept submits a newly accepted connection to the worker pool for
// handshake and streaming. It returns immediately; ants.ErrPoolOverload
// means the follower concurrency bound is exhausted and the caller should
// close the connection.
func (s *Shipper) Accept(ctx context.Context, conn net.Conn) error {
	return s.workers.Submit(func() {
		if err := s.handleFollower(ctx, conn); err != nil {
			s.audit.Log(EventFollowerDetached, s.node.ID(), s.node.Generation(), map[string]any{"error": err.Error()})
		}
	})
}

func (s *Shipper) handleFollower(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	header, err := wire.ReadHeader(conn)
	if err != nil {
		return err
	}
	if header.OpCode != wire.OpHandshake {
		return fmt.Errorf("replication: expected handshake, got opcode %d", header.OpCode)
	}
	var req wire.HandshakeRequest
	if err := wire.ReadBody(conn, header.Length, &req); err != nil {
		return err
	}

	if !s.node.IsAuthority() {
		wire.WriteMessage(conn, wire.OpReply, wire.HandshakeReply{
			Accept:          false,
			Generation:      s.node.Generation(),
			AuthorityNodeID: s.node.AuthorityNodeID(),
			Reason:          "not authority",
		})
		return fmt.Errorf("replication: rejected handshake from %s: not authority", req.NodeID)
	}

	if err := wire.WriteMessage(conn, wire.OpReply, wire.HandshakeReply{
		Accept:          true,
		Generation:      s.node.Generation(),
		AuthorityNodeID: s.node.AuthorityNodeID(),
	}); err != nil {
		return err
	}

	session := s.pool.Attach(req.NodeID, conn, req.LastAppliedLSN)
	defer s.pool.Detach(req.NodeID)
	s.audit.Log(EventFollowerAttached, req.NodeID, s.node.Generation(), map[string]any{"last_applied_lsn": req.LastAppliedLSN})

	return s.stream(ctx, conn, session)
}

// stream ships every record after session's last acknowledged lsn, then
// polls for newly appended records until the connection breaks or ctx is
// canceled. There is no push notification from the WAL on new appends, so
// polling on a short ticker is the simplest correct way to tail it.
func (s *Shipper) stream(ctx context.Context, conn net.Conn, session *FollowerSession) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		from := wal.LSN(session.LastAppliedLSN() + 1)
		err := s.wal.Iterate(from, func(lsn wal.LSN, kind wal.Kind, payload []byte) error {
			frame := wire.RecordFrame{
				LSN:      uint64(lsn),
				Kind:     uint8(kind),
				Payload:  payload,
				Checksum: frameChecksum(kind, payload),
			}
			if err := wire.WriteMessage(conn, wire.OpRecord, frame); err != nil {
				return err
			}
			session.touch(uint64(lsn))
			return nil
		})
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the shipper's worker pool. Attached sessions are closed
// separately via the FollowerPool.
func (s *Shipper) Close() {
	s.workers.Release()
}
