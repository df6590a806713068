package replication

import (
	"fmt"
	"sync"

	"github.com/kartikbazzad/coredoc/internal/util"
)

// Config configures a node's replication identity.
type Config struct {
	NodeID  string
	DataDir string
}

// Node holds one process's replication role and generation, backed by its
// durable authority marker. All role transitions go through rewriteMarker,
// which is the only path that ever touches the on-disk marker after boot.
type Node struct {
	mu         sync.RWMutex
	cfg        Config
	marker     *Marker
	markerPath string
	audit      *AuditLogger
}

// Boot reads the node's marker and enters the role it names. Per the boot
// rule, a node with no marker refuses to start: there is no default role.
func Boot(cfg Config, audit *AuditLogger) (*Node, error) {
	path := MarkerPath(cfg.DataDir)
	m, err := LoadMarker(path)
	if err != nil {
		return nil, fmt.Errorf("replication: boot refused for node %s: %w", cfg.NodeID, err)
	}

	n := &Node{cfg: cfg, marker: m, markerPath: path, audit: audit}
	audit.Log(EventBoot, cfg.NodeID, m.Generation, map[string]any{"role": m.Role.String()})
	return n, nil
}

// Bootstrap writes an initial marker for a brand-new deployment's first
// authority and boots against it. It must never be called against a data
// directory that already has a marker — that would silently discard
// generation history.
func Bootstrap(cfg Config, audit *AuditLogger) (*Node, error) {
	path := MarkerPath(cfg.DataDir)
	if _, err := LoadMarker(path); err == nil {
		return nil, fmt.Errorf("replication: refusing to bootstrap %s: marker already exists", path)
	}
	m := &Marker{Role: RoleAuthority, Generation: 1, AuthorityNodeID: cfg.NodeID}
	if err := WriteMarker(path, m); err != nil {
		return nil, err
	}
	return Boot(cfg, audit)
}

// Role returns the node's current role.
func (n *Node) Role() Role {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.marker.Role
}

// Generation returns the node's current generation.
func (n *Node) Generation() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.marker.Generation
}

// AuthorityNodeID returns the node id this marker believes holds authority.
func (n *Node) AuthorityNodeID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.marker.AuthorityNodeID
}

// IsAuthority reports whether this node currently holds write authority.
func (n *Node) IsAuthority() bool {
	return n.Role() == RoleAuthority
}

// ID returns the node's configured id.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// rewriteMarker persists a new marker and only then updates the in-memory
// view — a crash between the two leaves the marker, not memory, as the
// source of truth for the next boot.
func (n *Node) rewriteMarker(m *Marker) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := WriteMarker(n.markerPath, m); err != nil {
		return err
	}
	n.marker = m
	return nil
}

// becomeAuthority rewrites the marker to name this node authority at the
// given generation — the Marking state's linearization point when this
// node is the promotion target.
func (n *Node) becomeAuthority(generation uint64) error {
	return n.rewriteMarker(&Marker{Role: RoleAuthority, Generation: generation, AuthorityNodeID: n.cfg.NodeID})
}

// stepDown rewrites the marker to follower, naming a new authority — the
// Transitioning state when this node was the outgoing authority.
func (n *Node) stepDown(newAuthorityNodeID string, generation uint64) error {
	return n.rewriteMarker(&Marker{Role: RoleFollower, Generation: generation, AuthorityNodeID: newAuthorityNodeID})
}

// observeGeneration checks a remote generation against this node's own and
// returns util.ErrAuthorityConflict if the remote is strictly ahead — the
// lower-generation node must halt fatally rather than keep acting as
// authority (spec's generation-mismatch authority-conflict rule).
func (n *Node) observeGeneration(remote uint64) error {
	if remote > n.Generation() {
		return fmt.Errorf("%w: local generation=%d remote generation=%d", util.ErrAuthorityConflict, n.Generation(), remote)
	}
	return nil
}
