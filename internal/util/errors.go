package util

import "errors"

// Common errors used throughout coredoc
var (
	// Storage errors
	ErrPageNotFound    = errors.New("page not found")
	ErrPageFull        = errors.New("page is full")
	ErrInvalidPageID   = errors.New("invalid page ID")
	ErrDiskReadFailed  = errors.New("disk read failed")
	ErrDiskWriteFailed = errors.New("disk write failed")

	// WAL errors
	ErrWALCorrupt     = errors.New("WAL is corrupt")
	ErrWALTornTail    = errors.New("WAL tail is torn")
	ErrWALSegmentFull = errors.New("WAL segment is full")

	// Schema errors
	ErrSchemaNotFound = errors.New("schema not found")
	ErrSchemaInvalid  = errors.New("schema is invalid")

	// MVCC / query errors
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDuplicateID        = errors.New("duplicate _id")
	ErrUnboundedQuery     = errors.New("query has no provable bound")

	// Replication errors
	ErrStaleReplica      = errors.New("replica has not caught up within deadline")
	ErrAuthorityConflict = errors.New("authority conflict: higher generation observed")
	ErrMarkerCorrupt     = errors.New("authority marker is corrupt")
	ErrMarkerAbsent      = errors.New("authority marker is absent")

	// Engine errors
	ErrEngineClosed   = errors.New("engine is closed")
	ErrEngineDraining = errors.New("engine is draining: writes are paused for promotion")

	// Admission control errors
	ErrAdmissionRejected = errors.New("admission control rejected the operation")
	ErrQueryTimeout      = errors.New("query exceeded its configured timeout")
)
