// Package wal implements the write-ahead log: a durable, totally ordered,
// crash-safe sequence of logical operations and the primitives to replay it.
//
// Key components:
//   - WAL: the coordinator managing segments, LSN allocation, and flushing.
//   - Segment: a single log file (rolled when full).
//   - Record: a single framed log entry.
//   - Flusher: batches concurrent appends behind a single fsync (group commit).
package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/logging"
)

// WAL is the append mutex, LSN allocator, and segment-rotation coordinator.
// Appends are serialized under mu, but the fsync that makes an append
// durable is batched across concurrently-arriving callers by the Flusher.
type WAL struct {
	dir string

	mu             sync.Mutex
	currentSegment *Segment
	nextSegmentID  SegmentID
	segmentSize    int64

	flusher *Flusher
}

// Open opens the WAL rooted at dir, creating it if absent, or recovering the
// most recent segment for continued appends if it already exists.
func Open(dir string) (*WAL, error) {
	return OpenWithSegmentSize(dir, DefaultSegmentSize)
}

// OpenWithSegmentSize is Open with an explicit maximum segment size, mostly
// useful for tests that want to exercise segment rotation without writing
// 64MiB of fixtures.
func OpenWithSegmentSize(dir string, segmentSize int64) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	ids, err := listSegmentIDs(dir)
	if err != nil {
		return nil, err
	}

	w := &WAL{dir: dir, segmentSize: segmentSize}

	if len(ids) == 0 {
		seg, err := CreateSegment(dir, 0, LSN(1))
		if err != nil {
			return nil, err
		}
		seg.maxSize = segmentSize
		w.currentSegment = seg
		w.nextSegmentID = 1
	} else {
		lastID := ids[len(ids)-1]
		seg, err := OpenSegment(dir, lastID)
		if err != nil {
			return nil, err
		}
		seg.maxSize = segmentSize
		w.currentSegment = seg
		w.nextSegmentID = lastID + 1
	}

	w.flusher = newFlusher()
	return w, nil
}

// listSegmentIDs returns every segment ID present in dir, in ascending order.
func listSegmentIDs(dir string) ([]SegmentID, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wal"))
	if err != nil {
		return nil, fmt.Errorf("failed to list WAL segments: %w", err)
	}

	ids := make([]SegmentID, 0, len(matches))
	for _, m := range matches {
		var raw uint64
		if _, err := fmt.Sscanf(filepath.Base(m), "%012d.wal", &raw); err != nil {
			continue // not a segment file we recognize
		}
		ids = append(ids, SegmentID(raw))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Append frames (kind, payload), writes it to the active segment, and
// returns once the write is durable on stable storage — fsync-before-ack.
// The fsync itself may be shared with other concurrently-arriving appends
// via the Flusher; LSN assignment and the write itself are always serialized
// under the append mutex.
func (w *WAL) Append(kind Kind, payload []byte) (LSN, error) {
	w.mu.Lock()
	if w.currentSegment.IsFull() {
		if err := w.rotateLocked(); err != nil {
			w.mu.Unlock()
			return 0, err
		}
	}
	seg := w.currentSegment
	lsn, err := seg.Append(kind, payload)
	if errors.Is(err, util.ErrWALSegmentFull) {
		// The record does not fit in what is left of the active segment:
		// roll to a new segment and write it there instead.
		if err = w.rotateLocked(); err == nil {
			seg = w.currentSegment
			lsn, err = seg.Append(kind, payload)
		}
	}
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := w.flusher.flush(seg); err != nil {
		return 0, err
	}
	return lsn, nil
}

// rotateLocked seals the active segment and opens the next one. Callers
// must hold w.mu.
func (w *WAL) rotateLocked() error {
	if err := w.currentSegment.Seal(); err != nil {
		return err
	}
	next, err := CreateSegment(w.dir, w.nextSegmentID, w.currentSegment.NextLSN())
	if err != nil {
		return err
	}
	next.maxSize = w.segmentSize
	w.currentSegment = next
	w.nextSegmentID++
	return nil
}

// Iterate replays every record with lsn >= fromLSN, across every segment in
// ascending order, calling fn for each. A torn tail on any segment other
// than the WAL's final (most recent) segment is fatal — per halt-on-
// corruption — since it means a sealed segment was damaged after the fact.
// A torn tail on the final segment is the benign, expected shape of a log
// whose last append never completed, and simply ends iteration.
func (w *WAL) Iterate(fromLSN LSN, fn func(lsn LSN, kind Kind, payload []byte) error) error {
	w.mu.Lock()
	ids, err := listSegmentIDs(w.dir)
	currentID := w.currentSegment.ID
	w.mu.Unlock()
	if err != nil {
		return err
	}

	for i, id := range ids {
		isFinal := id == currentID || i == len(ids)-1

		var seg *Segment
		var closeAfter bool
		if id == currentID {
			w.mu.Lock()
			seg = w.currentSegment
			w.mu.Unlock()
		} else {
			seg, err = OpenSegment(w.dir, id)
			if err != nil {
				return err
			}
			closeAfter = true
		}

		tornTail, iterErr := seg.Iterate(func(lsn LSN, kind Kind, payload []byte) error {
			if lsn < fromLSN {
				return nil
			}
			return fn(lsn, kind, payload)
		})
		if closeAfter {
			seg.Close()
		}
		if iterErr != nil {
			return iterErr
		}
		if tornTail && !isFinal {
			logging.Error("wal corruption detected",
				"lsn", fromLSN, "segment", id, "reason", "torn tail in sealed non-final segment")
			return fmt.Errorf("%w: torn tail in sealed segment %d (not the final segment)", util.ErrWALCorrupt, id)
		}
	}
	return nil
}

// TruncatePrefix removes every sealed segment whose highest LSN is strictly
// less than lsn, per the checkpointer's reclaim step. The active segment is
// never removed.
func (w *WAL) TruncatePrefix(lsn LSN) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids, err := listSegmentIDs(w.dir)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == w.currentSegment.ID {
			continue
		}
		seg, err := OpenSegment(w.dir, id)
		if err != nil {
			return err
		}
		highest := seg.NextLSN() - 1
		path := seg.Path()
		seg.Close()

		if highest < lsn {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove sealed WAL segment %d: %w", id, err)
			}
		}
	}
	return nil
}

// CurrentLSN returns the LSN that would be assigned to the next append.
func (w *WAL) CurrentLSN() LSN {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentSegment.NextLSN()
}

// Close stops the flusher and closes the active segment.
func (w *WAL) Close() error {
	w.flusher.stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentSegment.Close()
}
