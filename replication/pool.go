package replication

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// FollowerSession tracks one follower's attached replication connection on
// the authority side.
type FollowerSession struct {
	NodeID     string
	conn       net.Conn
	AttachedAt time.Time

	lastAppliedLSN atomic.Uint64
	lastSeenUnix   atomic.Int64
}

// LastAppliedLSN returns the highest lsn this follower has acknowledged.
func (s *FollowerSession) LastAppliedLSN() uint64 {
	return s.lastAppliedLSN.Load()
}

func (s *FollowerSession) touch(lsn uint64) {
	s.lastAppliedLSN.Store(lsn)
	s.lastSeenUnix.Store(time.Now().UnixNano())
}

// IdleFor returns how long it has been since this session last acknowledged
// a record.
func (s *FollowerSession) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastSeenUnix.Load()))
}

// FollowerPool is the authority's registry of attached follower shipping
// sessions, pruned of sessions that stop acknowledging records.
type FollowerPool struct {
	mu           sync.RWMutex
	sessions     map[string]*FollowerSession
	staleTimeout time.Duration
	stopChan     chan struct{}
	running      bool
}

// NewFollowerPool creates an empty pool. A session idle for longer than
// staleTimeout is pruned by the background health checker started in Start.
func NewFollowerPool(staleTimeout time.Duration) *FollowerPool {
	return &FollowerPool{
		sessions:     make(map[string]*FollowerSession),
		staleTimeout: staleTimeout,
	}
}

// Start launches the background pruning loop.
func (p *FollowerPool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	go p.healthChecker()
}

// Stop halts the background pruning loop; attached sessions are left alone.
func (p *FollowerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()
}

func (p *FollowerPool) healthChecker() {
	ticker := time.NewTicker(p.staleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.pruneStale()
		case <-p.stopChan:
			return
		}
	}
}

func (p *FollowerPool) pruneStale() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, s := range p.sessions {
		if s.IdleFor() > p.staleTimeout {
			s.conn.Close()
			delete(p.sessions, id)
		}
	}
}

// Attach registers a newly handshaked follower connection, replacing any
// prior session for the same node id.
func (p *FollowerPool) Attach(nodeID string, conn net.Conn, lastAppliedLSN uint64) *FollowerSession {
	s := &FollowerSession{NodeID: nodeID, conn: conn, AttachedAt: time.Now()}
	s.touch(lastAppliedLSN)

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.sessions[nodeID]; ok {
		old.conn.Close()
	}
	p.sessions[nodeID] = s
	return s
}

// Detach removes a follower's session, if attached.
func (p *FollowerPool) Detach(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, nodeID)
}

// Sessions returns a snapshot of currently attached sessions.
func (p *FollowerPool) Sessions() []*FollowerSession {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*FollowerSession, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	return out
}

// Stats summarizes pool occupancy.
type Stats struct {
	Attached int
}

// Stats returns the current pool size.
func (p *FollowerPool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{Attached: len(p.sessions)}
}

// Close detaches and closes every attached session.
func (p *FollowerPool) Close() error {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, s := range p.sessions {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %s: %w", id, err)
		}
		delete(p.sessions, id)
	}
	return firstErr
}
