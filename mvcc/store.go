package mvcc

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/logging"
	"github.com/kartikbazzad/coredoc/schema"
)

// OpPayload is the WAL record payload for an insert, update, or delete:
// enough to reconstruct the document-level effect of the operation during
// both live apply and crash recovery replay.
type OpPayload struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Body       map[string]any `json:"body,omitempty"`
}

// Encode serializes the payload for a WAL record.
func (p *OpPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeOpPayload parses a WAL record payload written by Encode.
func DecodeOpPayload(data []byte) (*OpPayload, error) {
	var p OpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode wal payload: %v", util.ErrWALCorrupt, err)
	}
	return &p, nil
}

// collectionState is the per-collection slice of the store: its document
// chains and whichever secondary indexes its schema declares.
type collectionState struct {
	mu      sync.Mutex // serializes apply() per collection for U1/update-exists checks
	chains  map[string]*chain
	indexes map[string]*SecondaryIndex // index name -> tree
	schema  *schema.Schema
}

// Store is the authoritative in-memory image of every collection's
// committed document versions, kept consistent with their secondary indexes
// and replayable from the write-ahead log by LSN.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collectionState
	snapshots   *SnapshotManager
	lastApplied wal.LSN
}

// NewStore creates an empty store. Collections are registered via
// RegisterCollection before any Apply referencing them.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*collectionState),
		snapshots:   NewSnapshotManager(),
	}
}

// RegisterCollection wires a schema's declared indexes into the store. It
// must be called once per collection at startup, before recovery replay.
func (s *Store) RegisterCollection(sc *schema.Schema, indexes map[string]*SecondaryIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[sc.Collection] = &collectionState{
		chains:  make(map[string]*chain),
		indexes: indexes,
		schema:  sc,
	}
}

// OpenCollection opens every btree-kind secondary index a schema declares
// (via catalog, to restore root pages across restarts) and registers the
// resulting collection with the store in one step.
func (s *Store) OpenCollection(dataDir string, sc *schema.Schema, catalog *IndexCatalog, encryptionKey []byte) error {
	indexes := make(map[string]*SecondaryIndex)
	for _, idx := range sc.Indexes {
		if idx.Kind != schema.IndexBTree {
			continue
		}
		si, err := OpenSecondaryIndex(dataDir, sc.Collection, idx, catalog, encryptionKey)
		if err != nil {
			return fmt.Errorf("open index %s/%s: %w", sc.Collection, idx.Name, err)
		}
		indexes[idx.Name] = si
	}
	s.RegisterCollection(sc, indexes)
	return nil
}

// CloseCollection flushes and releases a collection's secondary index
// files.
func (s *Store) CloseCollection(collection string) error {
	s.mu.Lock()
	cs, ok := s.collections[collection]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	for _, idx := range cs.indexes {
		if err := idx.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) collection(name string) (*collectionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrCollectionNotFound, name)
	}
	return cs, nil
}

// Snapshots exposes the store's snapshot manager for callers that need to
// pin a read timestamp (executor) or drive garbage collection (the
// background collector).
func (s *Store) Snapshots() *SnapshotManager {
	return s.snapshots
}

// Get returns the version of (collection, id) visible at snapshot, or
// (nil, false) if no such document is visible.
func (s *Store) Get(snapshot CommitTS, collection, id string) (map[string]any, bool, error) {
	cs, err := s.collection(collection)
	if err != nil {
		return nil, false, err
	}
	cs.mu.Lock()
	c, ok := cs.chains[id]
	cs.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	v := c.visible(snapshot)
	if v == nil {
		return nil, false, nil
	}
	return v.Body, true, nil
}

// Scan invokes fn for every document in collection visible at snapshot, in
// unspecified order. Scanning stops early if fn returns false.
func (s *Store) Scan(snapshot CommitTS, collection string, fn func(id string, body map[string]any) bool) error {
	cs, err := s.collection(collection)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	chains := make(map[string]*chain, len(cs.chains))
	for id, c := range cs.chains {
		chains[id] = c
	}
	cs.mu.Unlock()

	for id, c := range chains {
		v := c.visible(snapshot)
		if v == nil {
			continue
		}
		if !fn(id, v.Body) {
			break
		}
	}
	return nil
}

// LookupByIndex returns every id in collection whose field (identified by
// indexName) equals key's decoded value, via that field's secondary index.
func (s *Store) LookupByIndex(collection, indexName string, key []byte) ([]string, error) {
	cs, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	idx, ok := cs.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("index %q not found on collection %q", indexName, collection)
	}
	return idx.Get(key)
}

// RangeByIndex returns every id in collection whose indexed field falls in
// [startKey, endKey].
func (s *Store) RangeByIndex(collection, indexName string, startKey, endKey []byte) ([]string, error) {
	cs, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	idx, ok := cs.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("index %q not found on collection %q", indexName, collection)
	}
	return idx.RangeScan(startKey, endKey)
}

// Apply installs the effect of a single WAL record, keyed by lsn. It is
// idempotent: replaying an already-applied lsn (lsn <= the store's
// high-water mark) is a silent no-op, since the WAL only ever replays
// records in increasing LSN order, live or during recovery.
func (s *Store) Apply(lsn wal.LSN, kind wal.Kind, payload []byte) error {
	s.mu.Lock()
	if lsn <= s.lastApplied {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	switch kind {
	case wal.KindInsert, wal.KindUpdate, wal.KindDelete:
		p, err := DecodeOpPayload(payload)
		if err != nil {
			logging.Error("mvcc corruption detected", "lsn", lsn, "reason", err.Error())
			return err
		}
		if err := s.applyOp(lsn, kind, p); err != nil {
			return err
		}
	case wal.KindCheckpointBegin, wal.KindCheckpointEnd, wal.KindPromotionMarker:
		// no document-level effect; recorded for replication/checkpoint bookkeeping only.
	default:
		return fmt.Errorf("apply: unknown wal record kind %v at lsn %d", kind, lsn)
	}

	s.mu.Lock()
	s.lastApplied = lsn
	s.mu.Unlock()
	s.snapshots.advance(lsn)
	return nil
}

func (s *Store) applyOp(lsn wal.LSN, kind wal.Kind, p *OpPayload) error {
	cs, err := s.collection(p.Collection)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	c, ok := cs.chains[p.ID]
	if !ok {
		c = newChain()
		cs.chains[p.ID] = c
	}
	prev := c.latest()

	switch kind {
	case wal.KindInsert:
		if prev != nil && !prev.Tombstone {
			return fmt.Errorf("%w: collection=%s id=%s", util.ErrDuplicateID, p.Collection, p.ID)
		}
		c.append(&Version{CommitTS: lsn, Body: p.Body})
		if err := s.indexPut(cs, p.ID, p.Body); err != nil {
			return err
		}

	case wal.KindUpdate:
		if prev == nil || prev.Tombstone {
			return fmt.Errorf("%w: collection=%s id=%s", util.ErrDocumentNotFound, p.Collection, p.ID)
		}
		c.append(&Version{CommitTS: lsn, Body: p.Body})
		if err := s.indexRemove(cs, p.ID, prev.Body); err != nil {
			return err
		}
		if err := s.indexPut(cs, p.ID, p.Body); err != nil {
			return err
		}

	case wal.KindDelete:
		if prev == nil || prev.Tombstone {
			return fmt.Errorf("%w: collection=%s id=%s", util.ErrDocumentNotFound, p.Collection, p.ID)
		}
		c.append(&Version{CommitTS: lsn, Tombstone: true})
		if err := s.indexRemove(cs, p.ID, prev.Body); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexPut(cs *collectionState, id string, body map[string]any) error {
	for _, idx := range cs.schema.Indexes {
		if idx.Kind != schema.IndexBTree {
			continue
		}
		key, err := EncodeIndexKey(fieldValue(body, idx.FieldPath))
		if err != nil {
			return err
		}
		if key == nil {
			continue
		}
		if err := cs.indexes[idx.Name].Put(key, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) indexRemove(cs *collectionState, id string, body map[string]any) error {
	for _, idx := range cs.schema.Indexes {
		if idx.Kind != schema.IndexBTree {
			continue
		}
		key, err := EncodeIndexKey(fieldValue(body, idx.FieldPath))
		if err != nil {
			return err
		}
		if key == nil {
			continue
		}
		if err := cs.indexes[idx.Name].Remove(key, id); err != nil {
			return err
		}
	}
	return nil
}

// fieldValue resolves a dotted field path against a document body.
func fieldValue(body map[string]any, path string) any {
	cur := any(body)
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// GarbageCollect reclaims every version dominated by a newer version at or
// before lowWater, across every collection's chains.
func (s *Store) GarbageCollect(lowWater CommitTS) {
	s.mu.RLock()
	collections := make([]*collectionState, 0, len(s.collections))
	for _, cs := range s.collections {
		collections = append(collections, cs)
	}
	s.mu.RUnlock()

	for _, cs := range collections {
		cs.mu.Lock()
		chains := make([]*chain, 0, len(cs.chains))
		for _, c := range cs.chains {
			chains = append(chains, c)
		}
		cs.mu.Unlock()

		for _, c := range chains {
			c.gc(lowWater)
		}
	}
}

// LastApplied returns the LSN of the most recently applied record, the
// point from which recovery should resume on restart.
func (s *Store) LastApplied() wal.LSN {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastApplied
}
