package wire

// HandshakeRequest opens a replication stream: the follower advertises its
// node ID and where it last left off so the authority knows where to
// resume shipping from.
type HandshakeRequest struct {
	NodeID         string `json:"node_id"`
	LastAppliedLSN uint64 `json:"last_applied_lsn"`
}

// HandshakeReply either accepts the follower or rejects it. A generation
// that disagrees with the follower's own view signals an authority
// conflict rather than an ordinary rejection.
type HandshakeReply struct {
	Accept          bool   `json:"accept"`
	Generation      uint64 `json:"generation"`
	AuthorityNodeID string `json:"authority_node_id"`
	Reason          string `json:"reason,omitempty"`
}

// RecordFrame mirrors the on-disk WAL record framing: one frame per
// replicated record, sent in strictly increasing lsn order. Checksum covers
// kind+payload, the same way the on-disk frame's trailing CRC32C does.
type RecordFrame struct {
	LSN      uint64 `json:"lsn"`
	Kind     uint8  `json:"kind"`
	Payload  []byte `json:"payload"`
	Checksum uint32 `json:"checksum"`
}

// MarkerStatusReply answers the `marker_status` operator surface and gives a
// promotion driver the authority's current role, generation, and durable
// LSN to validate a target against.
type MarkerStatusReply struct {
	Role            uint8  `json:"role"`
	Generation      uint64 `json:"generation"`
	AuthorityNodeID string `json:"authority_node_id"`
	DurableLSN      uint64 `json:"durable_lsn"`
}

// DrainReply reports the authority's durable LSN once it has stopped
// accepting writes and flushed its WAL tail.
type DrainReply struct {
	DurableLSN uint64 `json:"durable_lsn"`
}

// PromotionMarkRequest asks a validated target to atomically rewrite its own
// authority marker — the linearization point of promotion.
type PromotionMarkRequest struct {
	NewGeneration uint64 `json:"new_generation"`
}

type PromotionMarkReply struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// PromotionValidateRequest begins the Validating state against a promotion
// target: the driver asks it to confirm it has not lost any data and that
// its view of the current generation agrees.
type PromotionValidateRequest struct {
	ExpectedGeneration uint64 `json:"expected_generation"`
	DurableLSN         uint64 `json:"durable_lsn"`
}

type PromotionValidateReply struct {
	OK             bool   `json:"ok"`
	LastAppliedLSN uint64 `json:"last_applied_lsn"`
	Reason         string `json:"reason,omitempty"`
}

// PromotionTransitionRequest asks the old authority to step down to
// follower once the new authority has completed Marking.
type PromotionTransitionRequest struct {
	NewAuthorityNodeID string `json:"new_authority_node_id"`
	NewGeneration      uint64 `json:"new_generation"`
}

type PromotionTransitionReply struct {
	OK bool `json:"ok"`
}

// Reply is a generic ack/error envelope for RPCs with no other response
// payload.
type Reply struct {
	Error string `json:"error,omitempty"`
}
