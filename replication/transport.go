package replication

import (
	"fmt"
	"net"
	"time"

	"github.com/kartikbazzad/coredoc/wire"
)

// Transport is how a promotion driver reaches the nodes it coordinates over
// their admin RPC listeners. It does not carry the replication stream. It is
// an interface so tests can substitute an in-memory transport instead of
// dialing real sockets.
type Transport interface {
	MarkerStatus(addr string) (wire.MarkerStatusReply, error)
	PromoteValidate(addr string, req wire.PromotionValidateRequest) (wire.PromotionValidateReply, error)
	Drain(addr string) (wire.DrainReply, error)
	PromoteMark(addr string, req wire.PromotionMarkRequest) (wire.PromotionMarkReply, error)
	PromoteTransition(addr string, req wire.PromotionTransitionRequest) (wire.PromotionTransitionReply, error)
}

// TCPTransport implements Transport over the wire package's framing on
// plain TCP, per spec's "length-prefixed frames, no gRPC/HTTP" requirement.
type TCPTransport struct {
	Timeout time.Duration
}

// NewTCPTransport builds a TCPTransport with the given per-call timeout.
func NewTCPTransport(timeout time.Duration) *TCPTransport {
	return &TCPTransport{Timeout: timeout}
}

func (t *TCPTransport) roundTrip(addr string, op wire.OpCode, req, reply interface{}) error {
	conn, err := net.DialTimeout("tcp", addr, t.Timeout)
	if err != nil {
		return fmt.Errorf("replication: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if t.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(t.Timeout))
	}

	if err := wire.WriteMessage(conn, op, req); err != nil {
		return err
	}
	header, err := wire.ReadHeader(conn)
	if err != nil {
		return err
	}
	if header.OpCode == wire.OpError {
		var errReply wire.Reply
		wire.ReadBody(conn, header.Length, &errReply)
		return fmt.Errorf("replication: rpc error from %s: %s", addr, errReply.Error)
	}
	return wire.ReadBody(conn, header.Length, reply)
}

func (t *TCPTransport) MarkerStatus(addr string) (wire.MarkerStatusReply, error) {
	var reply wire.MarkerStatusReply
	err := t.roundTrip(addr, wire.OpMarkerStatus, nil, &reply)
	return reply, err
}

func (t *TCPTransport) PromoteValidate(addr string, req wire.PromotionValidateRequest) (wire.PromotionValidateReply, error) {
	var reply wire.PromotionValidateReply
	err := t.roundTrip(addr, wire.OpPromoteValidate, req, &reply)
	return reply, err
}

func (t *TCPTransport) Drain(addr string) (wire.DrainReply, error) {
	var reply wire.DrainReply
	err := t.roundTrip(addr, wire.OpDrain, nil, &reply)
	return reply, err
}

func (t *TCPTransport) PromoteMark(addr string, req wire.PromotionMarkRequest) (wire.PromotionMarkReply, error) {
	var reply wire.PromotionMarkReply
	err := t.roundTrip(addr, wire.OpPromoteMark, req, &reply)
	return reply, err
}

func (t *TCPTransport) PromoteTransition(addr string, req wire.PromotionTransitionRequest) (wire.PromotionTransitionReply, error) {
	var reply wire.PromotionTransitionReply
	err := t.roundTrip(addr, wire.OpPromoteTransition, req, &reply)
	return reply, err
}
