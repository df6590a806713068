package coredoc

import (
	"time"

	"github.com/kartikbazzad/coredoc/internal/admission"
)

// Options configures an Engine instance.
type Options struct {
	// DataDir is the directory holding the WAL, indexes, and authority
	// marker for this node.
	DataDir string

	// SchemaDir holds the *.json schema descriptors loaded at boot.
	SchemaDir string

	// NodeID identifies this process in replication handshakes, audit
	// events, and the authority marker.
	NodeID string

	// Bootstrap, when true, initializes a brand-new data directory as the
	// first authority at generation 1. It must never be set against a data
	// directory that already has a marker.
	Bootstrap bool

	// EncryptionKey, if non-nil, is used for AES-256-GCM at-rest encryption
	// of secondary index files. Must be exactly 32 bytes. WAL segments are
	// not encrypted.
	EncryptionKey []byte

	// AuditLogPath records promotion and authority events as JSON lines.
	// If empty, audit events are discarded.
	AuditLogPath string

	// Admission bounds write throughput, query concurrency, result-set
	// size, and query duration. A zero Config means no write-rate limit
	// and no query-concurrency limit; a zero MaxResultSetDocs or
	// QueryTimeout still falls back to admission.DefaultConfig()'s value
	// for that field, since 0 is never a sensible cap or deadline.
	Admission admission.Config

	// SlowOpThreshold, if nonzero, causes every operation taking at least
	// this long to log a structured "slow operation" event naming
	// (collection, kind, lsn, duration_ms, explain_class). It is
	// observability only; nothing in the core depends on it.
	SlowOpThreshold time.Duration
}

// DefaultOptions returns baseline options rooted at dir.
func DefaultOptions(dir string) *Options {
	return &Options{
		DataDir:   dir,
		SchemaDir: dir + "/schema",
		Admission: admission.DefaultConfig(),
	}
}
