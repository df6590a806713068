package coredoc

import (
	"errors"
	"fmt"

	"github.com/kartikbazzad/coredoc/internal/util"
)

// Kind tags an Error with its place in the error taxonomy, the
// machine-readable classifier every validation/precondition/unbounded/
// stale-replica failure is surfaced with.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindPrecondition       Kind = "precondition"
	KindUnboundedQuery     Kind = "unbounded_query"
	KindIOTransient        Kind = "io_transient"
	KindCorruption         Kind = "corruption"
	KindStaleReplica       Kind = "stale_replica"
	KindAuthorityConflict  Kind = "authority_conflict"
	KindConfig             Kind = "config"
	KindInternal           Kind = "internal"
	KindResourceExhausted  Kind = "resource_exhausted"
)

// Error is coredoc's standardized error shape: a stable Kind tag plus the
// underlying cause, the way a caller distinguishes "retry me" from "this
// process is about to exit."
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under kind with a human-readable message.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify inspects err against the known internal sentinels and returns the
// Error it should be surfaced to a caller as. Errors already wrapped as
// *Error pass through unchanged. Anything unrecognized is KindInternal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, util.ErrDuplicateID), errors.Is(err, util.ErrDocumentNotFound):
		return New(KindPrecondition, "precondition failed", err)
	case errors.Is(err, util.ErrSchemaInvalid), errors.Is(err, util.ErrSchemaNotFound), errors.Is(err, util.ErrCollectionNotFound):
		return New(KindValidation, "validation failed", err)
	case errors.Is(err, util.ErrUnboundedQuery):
		return New(KindUnboundedQuery, "query has no provable bound", err)
	case errors.Is(err, util.ErrDiskReadFailed), errors.Is(err, util.ErrDiskWriteFailed):
		return New(KindIOTransient, "disk I/O failed", err)
	case errors.Is(err, util.ErrWALCorrupt), errors.Is(err, util.ErrWALTornTail), errors.Is(err, util.ErrMarkerCorrupt):
		return New(KindCorruption, "corruption detected", err)
	case errors.Is(err, util.ErrStaleReplica):
		return New(KindStaleReplica, "replica has not caught up within deadline", err)
	case errors.Is(err, util.ErrAuthorityConflict), errors.Is(err, util.ErrMarkerAbsent), errors.Is(err, util.ErrEngineDraining):
		return New(KindAuthorityConflict, "authority conflict", err)
	case errors.Is(err, util.ErrAdmissionRejected), errors.Is(err, util.ErrQueryTimeout):
		return New(KindResourceExhausted, "rejected by admission control", err)
	default:
		return New(KindInternal, "internal error", err)
	}
}

// ExitCode maps err to the process exit code named in the operator surface:
// 0 clean, 2 configuration error, 3 corruption, 4 authority conflict, 5 I/O
// fatal. Anything else (validation, precondition, unbounded, stale replica)
// is a request-scoped error, not a process-fatal one, and maps to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Classify(err).Kind {
	case KindConfig:
		return 2
	case KindCorruption:
		return 3
	case KindAuthorityConflict:
		return 4
	case KindIOTransient:
		return 5
	default:
		return 1
	}
}
