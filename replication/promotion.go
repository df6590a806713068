package replication

import (
	"fmt"

	"github.com/kartikbazzad/coredoc/wire"
)

// PromotionState is one of the promotion protocol's five explicit states,
// plus the terminal Failed state any of them can fall into.
type PromotionState string

const (
	StateIdle          PromotionState = "idle"
	StateValidating    PromotionState = "validating"
	StateDraining      PromotionState = "draining"
	StateMarking       PromotionState = "marking"
	StateTransitioning PromotionState = "transitioning"
	StateCompleted     PromotionState = "completed"
	StateFailed        PromotionState = "failed"
)

// Promoter drives the promotion protocol against a named authority and
// target over Transport. It holds no role of its own — running it is how
// an operator (via the CLI's request-promotion command, talking to either
// node's admin listener) hands off authority deliberately, manually, one
// request at a time. There is no automatic failover.
type Promoter struct {
	transport Transport
	audit     *AuditLogger
	onState   func(PromotionState)
}

// NewPromoter builds a Promoter. onState, if non-nil, is called on every
// state transition for progress reporting; it may be nil.
func NewPromoter(transport Transport, audit *AuditLogger, onState func(PromotionState)) *Promoter {
	return &Promoter{transport: transport, audit: audit, onState: onState}
}

func (p *Promoter) emit(s PromotionState) {
	if p.onState != nil {
		p.onState(s)
	}
}

// Promote runs Idle → Validating → Draining → Marking → Transitioning →
// Completed against authorityAddr and targetAddr, returning the state it
// ended in. Any failure short-circuits to Failed with a descriptive error;
// the caller decides whether to retry (promotion is explicit and
// single-request — no state here survives across calls).
func (p *Promoter) Promote(authorityAddr, targetAddr string) (PromotionState, error) {
	p.emit(StateValidating)
	status, err := p.transport.MarkerStatus(authorityAddr)
	if err != nil {
		return p.fail(authorityAddr, 0, fmt.Errorf("query authority marker status: %w", err))
	}
	if Role(status.Role) != RoleAuthority {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("%s does not believe itself to be authority", authorityAddr))
	}

	p.audit.Log(EventPromotionStarted, authorityAddr, status.Generation, map[string]any{"target": targetAddr})

	vreply, err := p.transport.PromoteValidate(targetAddr, promotionValidateRequest(status))
	if err != nil {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("validate target: %w", err))
	}
	if !vreply.OK {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("target failed validation: %s", vreply.Reason))
	}

	p.emit(StateDraining)
	dreply, err := p.transport.Drain(authorityAddr)
	if err != nil {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("drain authority: %w", err))
	}
	if dreply.DurableLSN < vreply.LastAppliedLSN {
		// Draining must observe at least what validation already saw the
		// target catch up to; a smaller durable_lsn here would mean the
		// authority somehow went backwards between the two RPCs.
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("authority durable_lsn regressed during drain: %d < %d", dreply.DurableLSN, vreply.LastAppliedLSN))
	}

	p.emit(StateMarking)
	newGeneration := status.Generation + 1
	mreply, err := p.transport.PromoteMark(targetAddr, promotionMarkRequest(newGeneration))
	if err != nil {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("mark target as authority: %w", err))
	}
	if !mreply.OK {
		return p.fail(authorityAddr, status.Generation, fmt.Errorf("target refused marking: %s", mreply.Reason))
	}

	p.emit(StateTransitioning)
	treply, err := p.transport.PromoteTransition(authorityAddr, promotionTransitionRequest(targetAddr, newGeneration))
	if err != nil || !treply.OK {
		// The target already holds authority at the new generation — P1
		// still holds. An unreachable old authority fences itself on next
		// boot by observing the higher generation; that is out of scope
		// here, per spec, so this is logged but not fatal to the promotion.
		p.audit.Log(EventPromotionState, authorityAddr, newGeneration, map[string]any{
			"state": "transition-unreachable",
		})
	}

	p.emit(StateCompleted)
	p.audit.Log(EventPromotionCompleted, targetAddr, newGeneration, nil)
	return StateCompleted, nil
}

func (p *Promoter) fail(nodeAddr string, generation uint64, err error) (PromotionState, error) {
	p.emit(StateFailed)
	p.audit.Log(EventPromotionFailed, nodeAddr, generation, map[string]any{"error": err.Error()})
	return StateFailed, err
}

func promotionValidateRequest(status wire.MarkerStatusReply) wire.PromotionValidateRequest {
	return wire.PromotionValidateRequest{ExpectedGeneration: status.Generation, DurableLSN: status.DurableLSN}
}

func promotionMarkRequest(newGeneration uint64) wire.PromotionMarkRequest {
	return wire.PromotionMarkRequest{NewGeneration: newGeneration}
}

func promotionTransitionRequest(newAuthorityAddr string, newGeneration uint64) wire.PromotionTransitionRequest {
	return wire.PromotionTransitionRequest{NewAuthorityNodeID: newAuthorityAddr, NewGeneration: newGeneration}
}
