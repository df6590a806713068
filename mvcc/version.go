// Package mvcc maintains the authoritative in-memory image of committed
// document versions and the secondary indexes derived from them: snapshot
// reads, idempotent WAL replay, and watermark-pinned garbage collection.
package mvcc

import (
	"sync"

	"github.com/kartikbazzad/coredoc/internal/wal"
)

// CommitTS is the MVCC commit timestamp a version becomes visible at. It is
// assigned from the same monotonic counter as the WAL's LSN: for every
// applied record, CommitTS == LSN, since coredoc has no separate commit
// protocol distinguishing the two.
type CommitTS = wal.LSN

// Version is (collection, _id, commit_ts, body | tombstone). A tombstone
// version has Body == nil and Tombstone == true.
type Version struct {
	CommitTS  CommitTS
	Body      map[string]any
	Tombstone bool
}

// chain is the per-(collection,_id) version history, ordered ascending by
// CommitTS (oldest first) for cheap append-on-apply; visibility lookups scan
// from the tail backward.
type chain struct {
	mu       sync.RWMutex
	versions []*Version
}

func newChain() *chain {
	return &chain{}
}

// visible returns the version with the greatest CommitTS <= snapshot that
// is not a tombstone, or nil if none exists.
func (c *chain) visible(snapshot CommitTS) *Version {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.versions) - 1; i >= 0; i-- {
		v := c.versions[i]
		if v.CommitTS > snapshot {
			continue
		}
		if v.Tombstone {
			return nil
		}
		return v
	}
	return nil
}

// latest returns the most recently applied version regardless of snapshot,
// used by apply() to check U1 (insert-uniqueness) and update-must-exist.
func (c *chain) latest() *Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.versions) == 0 {
		return nil
	}
	return c.versions[len(c.versions)-1]
}

// append adds a new version to the chain in commit order. Callers must
// already hold whatever higher-level lock serializes apply() for this key;
// chain's own mutex only protects concurrent readers.
func (c *chain) append(v *Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions = append(c.versions, v)
}

// gc drops every version dominated by a newer version with CommitTS <=
// lowWater, keeping only the newest such version and anything after it.
func (c *chain) gc(lowWater CommitTS) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keepFrom := -1
	for i := len(c.versions) - 1; i >= 0; i-- {
		if c.versions[i].CommitTS <= lowWater {
			keepFrom = i
			break
		}
	}
	if keepFrom <= 0 {
		return
	}
	c.versions = c.versions[keepFrom:]
}
