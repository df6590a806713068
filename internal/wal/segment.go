package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/logging"
)

// SegmentID uniquely identifies a WAL segment file. Segment filenames are
// monotonic 12-digit zero-padded decimal, e.g. "000000000001.wal".
type SegmentID uint64

// DefaultSegmentSize is the default maximum size for a WAL segment (64MiB).
const DefaultSegmentSize = 64 * 1024 * 1024

const (
	segmentMagic      = "AWAL"
	segmentHeaderSize = 32 // magic[4] + version u32 + first_lsn u64 + created_unix_ms u64 + reserved u64
	segmentVersion    = 1
)

func segmentFilename(id SegmentID) string {
	return fmt.Sprintf("%012d.wal", uint64(id))
}

// Segment represents a single WAL segment file: a 32-byte header followed by
// framed records (see record.go). Records never span segments; when a
// record would not fit, the remainder of the segment is zero-padded and a
// new segment begins (segment roll).
type Segment struct {
	ID       SegmentID
	file     *os.File
	size     int64
	maxSize  int64
	firstLSN LSN
	nextLSN  LSN // LSN the next appended record will receive
	mu       sync.RWMutex
}

// CreateSegment creates a brand new segment file with firstLSN as the LSN of
// the first record that will be written to it.
func CreateSegment(dir string, id SegmentID, firstLSN LSN) (*Segment, error) {
	path := filepath.Join(dir, segmentFilename(id))

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL segment: %w", err)
	}

	header := make([]byte, segmentHeaderSize)
	copy(header[0:4], segmentMagic)
	binary.LittleEndian.PutUint32(header[4:8], segmentVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(firstLSN))
	binary.LittleEndian.PutUint64(header[16:24], uint64(time.Now().UnixMilli()))
	// header[24:32] reserved, left zero

	if _, err := file.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}

	return &Segment{
		ID:       id,
		file:     file,
		size:     segmentHeaderSize,
		maxSize:  DefaultSegmentSize,
		firstLSN: firstLSN,
		nextLSN:  firstLSN,
	}, nil
}

// OpenSegment opens an existing segment for appending, replaying its
// records first to learn its size and the next LSN it should assign. Replay
// stops at the first torn or corrupt frame, per the WAL's own iterate rules;
// a non-terminal corruption here is fatal and is returned as such — it is
// the caller's job to decide whether this is the final segment (benign torn
// tail) or not.
func OpenSegment(dir string, id SegmentID) (*Segment, error) {
	path := filepath.Join(dir, segmentFilename(id))

	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL segment: %w", err)
	}

	header := make([]byte, segmentHeaderSize)
	if _, err := io.ReadFull(file, header); err != nil {
		file.Close()
		logging.Error("wal corruption detected", "segment", id, "reason", "short segment header")
		return nil, fmt.Errorf("%w: short segment header: %v", util.ErrWALCorrupt, err)
	}
	if string(header[0:4]) != segmentMagic {
		file.Close()
		logging.Error("wal corruption detected", "segment", id, "reason", "bad magic")
		return nil, fmt.Errorf("%w: bad magic in segment %d", util.ErrWALCorrupt, id)
	}
	firstLSN := LSN(binary.LittleEndian.Uint64(header[8:16]))

	seg := &Segment{
		ID:       id,
		file:     file,
		size:     segmentHeaderSize,
		maxSize:  DefaultSegmentSize,
		firstLSN: firstLSN,
		nextLSN:  firstLSN,
	}

	n, _, lastGoodEnd, err := seg.scanFrames(nil, true)
	if err != nil {
		file.Close()
		return nil, err
	}
	seg.nextLSN = firstLSN + LSN(n)
	seg.size = lastGoodEnd

	return seg, nil
}

// Append writes kind+payload as a new framed record and returns its LSN.
// The caller is responsible for fsync'ing (see flusher.go) before
// acknowledging the write, per D1.
func (s *Segment) Append(kind Kind, payload []byte) (LSN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{Kind: kind, Payload: payload}
	data := rec.Encode()

	if s.size+int64(len(data)) > s.maxSize {
		return 0, util.ErrWALSegmentFull
	}

	n, err := s.file.Write(data)
	if err != nil {
		// Reclaim any partially written bytes: truncate back to last known
		// good length before surfacing the error, per §4.1 disk-full rule.
		s.file.Truncate(s.size)
		s.file.Seek(s.size, io.SeekStart)
		return 0, fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}
	if n != len(data) {
		s.file.Truncate(s.size)
		s.file.Seek(s.size, io.SeekStart)
		return 0, fmt.Errorf("%w: short write (%d of %d bytes)", util.ErrDiskWriteFailed, n, len(data))
	}

	lsn := s.nextLSN
	s.size += int64(len(data))
	s.nextLSN++
	return lsn, nil
}

// Sync flushes the segment's data and metadata to stable storage.
func (s *Segment) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}
	return nil
}

// IsFull reports whether the segment has reached its maximum size.
func (s *Segment) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size >= s.maxSize
}

// Remaining reports how many bytes are left before the segment is full.
func (s *Segment) Remaining() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize - s.size
}

// Seal zero-pads the remainder of the segment and syncs it; called on
// segment roll so no partial frame is ever mistaken for a new one.
func (s *Segment) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.maxSize - s.size
	if remaining > 0 {
		pad := make([]byte, remaining)
		if _, err := s.file.Write(pad); err != nil {
			return fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
		}
		s.size = s.maxSize
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}
	return nil
}

// NextLSN returns the LSN that would be assigned to the next appended
// record.
func (s *Segment) NextLSN() LSN {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextLSN
}

// FirstLSN returns the LSN of this segment's first record.
func (s *Segment) FirstLSN() LSN {
	return s.firstLSN
}

// Close syncs and closes the underlying file.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.file.Close()
}

// Path returns the segment's file path.
func (s *Segment) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file != nil {
		return s.file.Name()
	}
	return ""
}

// Iterate replays every intact record in this segment in order, calling fn
// with the record's derived LSN, kind, and payload. It stops cleanly at a
// torn tail (an incomplete trailing frame) and returns tornTail=true with a
// nil error. It returns a non-nil error — fatal, per K2 — on any checksum
// mismatch or malformed frame that is not the final, incomplete one.
func (s *Segment) Iterate(fn func(lsn LSN, kind Kind, payload []byte) error) (tornTail bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count, tornTail, _, err := s.scanFrames(func(idx int, kind Kind, payload []byte) error {
		return fn(s.firstLSN+LSN(idx), kind, payload)
	}, false)
	_ = count
	return tornTail, err
}

// scanFrames reads from just past the header to EOF (or the zero-padded
// tail), invoking visit (if non-nil) for every intact record. It returns the
// count of intact records read, whether the stream ended at a torn tail, and
// the byte offset immediately following the last intact frame (lastGoodEnd).
// A zero-length-prefix run (the zero padding written by Seal) is also
// treated as a benign end-of-stream, not corruption.
//
// When reconcile is true — only OpenSegment does this, before the segment is
// handed to any other goroutine — a detected torn tail also truncates the
// file to lastGoodEnd and seeks there, so a subsequent Append lands exactly
// after the last good frame instead of wherever the scan's reads left the
// file's cursor.
func (s *Segment) scanFrames(visit func(idx int, kind Kind, payload []byte) error, reconcile bool) (count int, tornTail bool, lastGoodEnd int64, err error) {
	lastGoodEnd = segmentHeaderSize
	if _, err := s.file.Seek(lastGoodEnd, io.SeekStart); err != nil {
		return 0, false, lastGoodEnd, fmt.Errorf("%w: %v", util.ErrDiskReadFailed, err)
	}

	finish := func(idx int, torn bool, ferr error) (int, bool, int64, error) {
		if torn && reconcile {
			if terr := s.file.Truncate(lastGoodEnd); terr != nil {
				return idx, torn, lastGoodEnd, fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, terr)
			}
			if _, serr := s.file.Seek(lastGoodEnd, io.SeekStart); serr != nil {
				return idx, torn, lastGoodEnd, fmt.Errorf("%w: %v", util.ErrDiskReadFailed, serr)
			}
		}
		return idx, torn, lastGoodEnd, ferr
	}

	lenBuf := make([]byte, 4)
	idx := 0
	for {
		n, rerr := io.ReadFull(s.file, lenBuf)
		if rerr == io.EOF {
			return finish(idx, false, nil)
		}
		if rerr == io.ErrUnexpectedEOF || (rerr == nil && n < 4) {
			return finish(idx, true, nil)
		}
		if rerr != nil {
			return finish(idx, false, fmt.Errorf("%w: %v", util.ErrDiskReadFailed, rerr))
		}

		length := binary.LittleEndian.Uint32(lenBuf)
		if length == 0 {
			// Zero padding from a sealed segment's roll: benign end-of-stream.
			return finish(idx, false, nil)
		}
		if length > 64*1024*1024 {
			logging.Error("wal corruption detected",
				"lsn", int64(s.firstLSN)+int64(idx), "segment", s.ID, "reason", "implausible record length")
			return finish(idx, false, fmt.Errorf("%w: implausible record length %d at index %d", util.ErrWALCorrupt, length, idx))
		}

		body := make([]byte, length)
		n, rerr = io.ReadFull(s.file, body)
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF || (rerr == nil && n < int(length)) {
			return finish(idx, true, nil)
		}
		if rerr != nil {
			return finish(idx, false, fmt.Errorf("%w: %v", util.ErrDiskReadFailed, rerr))
		}

		var crcBuf [4]byte
		n, rerr = io.ReadFull(s.file, crcBuf[:])
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF || (rerr == nil && n < 4) {
			return finish(idx, true, nil)
		}
		if rerr != nil {
			return finish(idx, false, fmt.Errorf("%w: %v", util.ErrDiskReadFailed, rerr))
		}
		crc := binary.LittleEndian.Uint32(crcBuf[:])

		kind, payload, derr := decodeFrame(body, crc)
		if derr != nil {
			atEOF, probeErr := s.atStreamEOF()
			if probeErr == nil && atEOF {
				// A bad checksum on the last frame of the stream is
				// structurally indistinguishable from a crash that landed
				// mid-write; the WAL-level iterator decides whether that is
				// benign (last segment) or fatal (any earlier segment).
				return finish(idx, true, nil)
			}
			logging.Error("wal corruption detected",
				"lsn", int64(s.firstLSN)+int64(idx), "segment", s.ID, "reason", derr.Error())
			return finish(idx, false, fmt.Errorf("%w: lsn=%d: %v", util.ErrWALCorrupt, int64(s.firstLSN)+int64(idx), derr))
		}

		if visit != nil {
			if verr := visit(idx, kind, payload); verr != nil {
				return finish(idx, false, verr)
			}
		}
		idx++
		lastGoodEnd += 4 + int64(length) + 4
	}
}

// atStreamEOF reports whether the current file position (just past a frame
// that failed to verify) is exactly at end-of-file: no bytes follow it.
func (s *Segment) atStreamEOF() (bool, error) {
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}
	info, err := s.file.Stat()
	if err != nil {
		return false, err
	}
	return pos >= info.Size(), nil
}
