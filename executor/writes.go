package executor

import (
	"fmt"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/mvcc"
	"github.com/kartikbazzad/coredoc/schema"
)

// Writer runs the write pipeline — schema validation, MVCC precondition
// check, WAL append, MVCC apply — for one collection's inserts, updates,
// and deletes, in that fixed order. A failure at validation or the
// precondition check returns before any WAL write; a failure at WAL append
// returns an I/O error with MVCC left unchanged; a failure at apply is, by
// construction, unreachable once validation and the precondition have
// already passed.
type Writer struct {
	wal   *wal.WAL
	store *mvcc.Store
}

// NewWriter builds a Writer over a single WAL and store pair.
func NewWriter(w *wal.WAL, store *mvcc.Store) *Writer {
	return &Writer{wal: w, store: store}
}

// Insert validates body against sc, checks that _id is not already live,
// appends an insert record, and applies it.
func (wr *Writer) Insert(sc *schema.Schema, body map[string]any) (wal.LSN, error) {
	if err := schema.ValidateDocument(sc, body); err != nil {
		return 0, err
	}
	id, _ := body["_id"].(string)

	snap := wr.store.Snapshots().Begin()
	_, exists, err := wr.store.Get(snap, sc.Collection, id)
	wr.store.Snapshots().Release(snap)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: collection=%s id=%s", util.ErrDuplicateID, sc.Collection, id)
	}

	return wr.appendAndApply(wal.KindInsert, sc.Collection, id, body)
}

// Update validates body against sc, checks that id currently resolves to a
// live document, appends an update record, and applies it.
func (wr *Writer) Update(sc *schema.Schema, id string, body map[string]any) (wal.LSN, error) {
	if err := schema.ValidateDocument(sc, body); err != nil {
		return 0, err
	}
	if body["_id"] != id {
		return 0, fmt.Errorf("validation: update body _id %v does not match target id %q", body["_id"], id)
	}

	if err := wr.requireExists(sc.Collection, id); err != nil {
		return 0, err
	}

	return wr.appendAndApply(wal.KindUpdate, sc.Collection, id, body)
}

// Delete checks that id currently resolves to a live document, appends a
// delete record, and applies it.
func (wr *Writer) Delete(collection, id string) (wal.LSN, error) {
	if err := wr.requireExists(collection, id); err != nil {
		return 0, err
	}
	return wr.appendAndApply(wal.KindDelete, collection, id, nil)
}

func (wr *Writer) requireExists(collection, id string) error {
	snap := wr.store.Snapshots().Begin()
	_, exists, err := wr.store.Get(snap, collection, id)
	wr.store.Snapshots().Release(snap)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: collection=%s id=%s", util.ErrDocumentNotFound, collection, id)
	}
	return nil
}

func (wr *Writer) appendAndApply(kind wal.Kind, collection, id string, body map[string]any) (wal.LSN, error) {
	payload := &mvcc.OpPayload{Collection: collection, ID: id, Body: body}
	data, err := payload.Encode()
	if err != nil {
		return 0, err
	}

	lsn, err := wr.wal.Append(kind, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrDiskWriteFailed, err)
	}

	if err := wr.store.Apply(lsn, kind, data); err != nil {
		// Validation and the precondition check already passed; an apply
		// failure here means the store and the WAL have diverged. Callers
		// should treat this as fatal rather than attempt to continue.
		return lsn, fmt.Errorf("fatal invariant violation: apply(lsn=%d) failed after successful WAL append: %w", lsn, err)
	}
	return lsn, nil
}
