package replication

import (
	"fmt"
	"net"

	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/wire"
)

// DrainFunc stops a node's write path and flushes its WAL tail, returning
// the durable lsn at the point writes stopped. It is supplied by whatever
// owns the write path (the engine), since replication has no write path of
// its own to drain.
type DrainFunc func() wal.LSN

// AdminServer answers the operator-facing RPCs a node exposes to a
// promotion driver: marker status, drain, and the two promotion-protocol
// steps that must execute on the node itself (Marking, Transitioning).
type AdminServer struct {
	node  *Node
	wal   *wal.WAL
	drain DrainFunc
}

// NewAdminServer builds an AdminServer over a node and its WAL. drain may
// be nil on a follower, which never receives a Drain RPC in a correctly
// driven promotion.
func NewAdminServer(node *Node, w *wal.WAL, drain DrainFunc) *AdminServer {
	return &AdminServer{node: node, wal: w, drain: drain}
}

// Serve handles one already-accepted connection: reads a single request,
// dispatches it, writes the reply, and closes the connection. Each RPC is
// one request/response pair per connection, matching the teacher's
// dial-per-call transport.
func (a *AdminServer) Serve(conn net.Conn) error {
	defer conn.Close()

	header, err := wire.ReadHeader(conn)
	if err != nil {
		return err
	}

	switch header.OpCode {
	case wire.OpMarkerStatus:
		return a.handleMarkerStatus(conn)
	case wire.OpPromoteValidate:
		var req wire.PromotionValidateRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return err
		}
		return a.handlePromoteValidate(conn, req)
	case wire.OpDrain:
		return a.handleDrain(conn)
	case wire.OpPromoteMark:
		var req wire.PromotionMarkRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return err
		}
		return a.handlePromoteMark(conn, req)
	case wire.OpPromoteTransition:
		var req wire.PromotionTransitionRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return err
		}
		return a.handlePromoteTransition(conn, req)
	default:
		wire.WriteMessage(conn, wire.OpError, wire.Reply{Error: fmt.Sprintf("unknown admin opcode %d", header.OpCode)})
		return fmt.Errorf("replication: unknown admin opcode %d", header.OpCode)
	}
}

func (a *AdminServer) handleMarkerStatus(conn net.Conn) error {
	reply := wire.MarkerStatusReply{
		Role:            uint8(a.node.Role()),
		Generation:      a.node.Generation(),
		AuthorityNodeID: a.node.AuthorityNodeID(),
		DurableLSN:      uint64(a.wal.CurrentLSN()),
	}
	return wire.WriteMessage(conn, wire.OpReply, reply)
}

// handlePromoteValidate is the Validating state run on the promotion
// target: it refuses promotion if it has not caught up to the authority's
// durable lsn, or if its view of the current generation has already moved
// past what the driver expects.
func (a *AdminServer) handlePromoteValidate(conn net.Conn, req wire.PromotionValidateRequest) error {
	reply := wire.PromotionValidateReply{LastAppliedLSN: uint64(a.wal.CurrentLSN())}

	if reply.LastAppliedLSN < req.DurableLSN {
		reply.Reason = fmt.Sprintf("target lags: last_applied_lsn=%d < durable_lsn=%d", reply.LastAppliedLSN, req.DurableLSN)
	} else if a.node.Generation() != req.ExpectedGeneration {
		reply.Reason = fmt.Sprintf("generation mismatch: local=%d expected=%d", a.node.Generation(), req.ExpectedGeneration)
	} else {
		reply.OK = true
	}
	return wire.WriteMessage(conn, wire.OpReply, reply)
}

func (a *AdminServer) handleDrain(conn net.Conn) error {
	if a.drain == nil {
		wire.WriteMessage(conn, wire.OpError, wire.Reply{Error: "node has no write path to drain"})
		return fmt.Errorf("replication: drain requested on a node with no DrainFunc")
	}
	lsn := a.drain()
	return wire.WriteMessage(conn, wire.OpReply, wire.DrainReply{DurableLSN: uint64(lsn)})
}

// handlePromoteMark is the Marking state run on the promotion target: the
// crash-atomic marker rewrite that is promotion's linearization point (P1).
func (a *AdminServer) handlePromoteMark(conn net.Conn, req wire.PromotionMarkRequest) error {
	reply := wire.PromotionMarkReply{}
	if req.NewGeneration <= a.node.Generation() {
		reply.Reason = fmt.Sprintf("new generation %d does not exceed current generation %d", req.NewGeneration, a.node.Generation())
		return wire.WriteMessage(conn, wire.OpReply, reply)
	}
	if err := a.node.becomeAuthority(req.NewGeneration); err != nil {
		reply.Reason = err.Error()
		return wire.WriteMessage(conn, wire.OpReply, reply)
	}
	reply.OK = true
	return wire.WriteMessage(conn, wire.OpReply, reply)
}

// handlePromoteTransition is the Transitioning state run on the outgoing
// authority: it steps down to follower, naming the new authority.
func (a *AdminServer) handlePromoteTransition(conn net.Conn, req wire.PromotionTransitionRequest) error {
	reply := wire.PromotionTransitionReply{}
	if err := a.node.stepDown(req.NewAuthorityNodeID, req.NewGeneration); err != nil {
		return wire.WriteMessage(conn, wire.OpReply, reply)
	}
	reply.OK = true
	return wire.WriteMessage(conn, wire.OpReply, reply)
}
