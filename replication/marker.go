// Package replication ships WAL records from the authority to followers,
// applies them in order on the follower side, and mediates authority
// handoff through a durable on-disk marker and an explicit promotion
// protocol.
package replication

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/kartikbazzad/coredoc/internal/util"
)

// Role is a node's current position in the replication topology.
type Role uint8

const (
	RoleFollower Role = iota
	RoleAuthority
)

func (r Role) String() string {
	if r == RoleAuthority {
		return "authority"
	}
	return "follower"
}

var markerCRCTable = crc32.MakeTable(crc32.Castagnoli)

// Marker is the durable record of a node's role and generation: `role ∈
// {authority, follower}`, a monotonic `generation`, and the node id that
// currently holds authority at that generation. Its atomic rewrite is the
// linearization point of promotion (invariant P1).
type Marker struct {
	Role            Role
	Generation      uint64
	AuthorityNodeID string
}

func (m *Marker) encode() []byte {
	idBytes := []byte(m.AuthorityNodeID)
	body := make([]byte, 1+8+2+len(idBytes))
	body[0] = byte(m.Role)
	binary.LittleEndian.PutUint64(body[1:9], m.Generation)
	binary.LittleEndian.PutUint16(body[9:11], uint16(len(idBytes)))
	copy(body[11:], idBytes)

	crc := crc32.Checksum(body, markerCRCTable)
	buf := make([]byte, len(body)+4)
	copy(buf, body)
	binary.LittleEndian.PutUint32(buf[len(body):], crc)
	return buf
}

func decodeMarker(data []byte) (*Marker, error) {
	if len(data) < 1+8+2+4 {
		return nil, fmt.Errorf("%w: marker file too short (%d bytes)", util.ErrMarkerCorrupt, len(data))
	}
	body := data[:len(data)-4]
	wantCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.Checksum(body, markerCRCTable) != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch", util.ErrMarkerCorrupt)
	}

	role := Role(body[0])
	generation := binary.LittleEndian.Uint64(body[1:9])
	idLen := int(binary.LittleEndian.Uint16(body[9:11]))
	if len(body) < 11+idLen {
		return nil, fmt.Errorf("%w: truncated node id", util.ErrMarkerCorrupt)
	}
	return &Marker{
		Role:            role,
		Generation:      generation,
		AuthorityNodeID: string(body[11 : 11+idLen]),
	}, nil
}

// MarkerPath returns the conventional marker file location under dataDir.
func MarkerPath(dataDir string) string {
	return filepath.Join(dataDir, "authority.marker")
}

// LoadMarker reads and verifies the marker at path. A missing marker is
// reported as util.ErrMarkerAbsent — per the boot rule, a node with no
// marker refuses to start rather than assume a default role. A checksum
// mismatch is util.ErrMarkerCorrupt and is fatal to the caller.
func LoadMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, util.ErrMarkerAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read marker: %v", util.ErrDiskReadFailed, err)
	}
	return decodeMarker(data)
}

// WriteMarker rewrites the marker at path crash-atomically: write to a
// temp file in the same directory, fsync it, rename over the target, then
// fsync the parent directory so the rename itself is durable. This ordering
// guarantees at most one node ever observes itself as holding a given
// generation's authority role across any crash sequence (P1).
func WriteMarker(path string, m *Marker) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: create marker temp file: %v", util.ErrDiskWriteFailed, err)
	}
	if _, err := f.Write(m.encode()); err != nil {
		f.Close()
		return fmt.Errorf("%w: write marker: %v", util.ErrDiskWriteFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: fsync marker temp file: %v", util.ErrDiskWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close marker temp file: %v", util.ErrDiskWriteFailed, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename marker into place: %v", util.ErrDiskWriteFailed, err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: open marker directory for fsync: %v", util.ErrDiskWriteFailed, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: fsync marker directory: %v", util.ErrDiskWriteFailed, err)
	}
	return nil
}
