package mvcc

import "sync"

// SnapshotManager issues logical watermarks and tracks which ones are still
// pinned by an active reader, so garbage collection never reclaims a
// version a live snapshot could still need. A snapshot is a timestamp, not
// a physical copy: "pinning" means incrementing a refcount on that
// timestamp, nothing more.
type SnapshotManager struct {
	mu       sync.Mutex
	watermark CommitTS        // highest applied commit_ts; next snapshot is pinned here
	refcount  map[CommitTS]int // open snapshot timestamps -> number of holders
}

// NewSnapshotManager creates a snapshot manager starting at watermark 0
// (no committed versions yet).
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{refcount: make(map[CommitTS]int)}
}

// advance raises the committed watermark to at least ts. Called by the
// store after every successful apply().
func (sm *SnapshotManager) advance(ts CommitTS) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if ts > sm.watermark {
		sm.watermark = ts
	}
}

// Begin captures the current committed watermark and pins it so garbage
// collection won't reclaim versions it could still read.
func (sm *SnapshotManager) Begin() CommitTS {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ts := sm.watermark
	sm.refcount[ts]++
	return ts
}

// Release unpins a snapshot obtained from Begin. Every Begin must be
// matched by exactly one Release.
func (sm *SnapshotManager) Release(ts CommitTS) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.refcount[ts]--
	if sm.refcount[ts] <= 0 {
		delete(sm.refcount, ts)
	}
}

// LowWater returns the oldest snapshot timestamp still pinned by a live
// reader, or the current watermark if no reader is active. Versions with
// CommitTS strictly less than this (and dominated by a newer one) are safe
// for garbage_collect to reclaim.
func (sm *SnapshotManager) LowWater() CommitTS {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.refcount) == 0 {
		return sm.watermark
	}
	low := sm.watermark
	for ts := range sm.refcount {
		if ts < low {
			low = ts
		}
	}
	return low
}

// Watermark returns the current committed watermark without pinning it.
func (sm *SnapshotManager) Watermark() CommitTS {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.watermark
}
