package mvcc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kartikbazzad/coredoc/schema"
	"github.com/kartikbazzad/coredoc/storage"
)

// SecondaryIndex maps an indexed field's encoded value to the set of _id
// strings currently holding that value, backed by a B+Tree file at
// <dataDir>/indexes/<collection>/<index>.idx (one tree per collection/index
// pair, mirroring the primary-key-per-value layout). Indexes track only the
// latest visible version of each document (I4): callers must remove the old
// key before installing the new one on update, and remove on delete.
type SecondaryIndex struct {
	mu     sync.Mutex
	pager  *storage.Pager
	pool   *storage.BufferPool
	tree   *storage.BPlusTree
	path   string
}

// OpenSecondaryIndex opens or creates the on-disk B+Tree for a single
// (collection, index) pair, restoring its root page from catalog if this
// tree has been opened before.
func OpenSecondaryIndex(dataDir, collection string, idx schema.Index, catalog *IndexCatalog, encryptionKey []byte) (*SecondaryIndex, error) {
	dir := filepath.Join(dataDir, "indexes", collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	path := filepath.Join(dir, idx.Name+".idx")

	pager, err := storage.NewPager(path, encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("open index pager %s: %w", path, err)
	}
	pool := storage.NewBufferPool(256, pager)

	var tree *storage.BPlusTree
	if rootID, ok := catalog.RootID(collection, idx.Name); ok {
		tree, err = storage.LoadBPlusTree(pool, storage.PageID(rootID))
	} else {
		tree, err = storage.NewBPlusTree(pool)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load index tree %s: %w", path, err)
	}

	tree.SetOnRootChange(func(newRoot storage.PageID) {
		_ = catalog.SetRootID(collection, idx.Name, uint64(newRoot))
	})
	if _, ok := catalog.RootID(collection, idx.Name); !ok {
		if err := catalog.SetRootID(collection, idx.Name, uint64(tree.GetRootID())); err != nil {
			pool.Close()
			return nil, fmt.Errorf("record initial root for %s: %w", path, err)
		}
	}

	return &SecondaryIndex{pager: pager, pool: pool, tree: tree, path: path}, nil
}

// entryIDs is the JSON-encoded value stored at each B+Tree leaf: the set of
// document IDs currently holding this key.
type entryIDs []string

func (si *SecondaryIndex) readIDs(key []byte) (entryIDs, error) {
	raw, err := si.tree.Search(key)
	if err != nil {
		return nil, nil
	}
	var ids entryIDs
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode index entry: %w", err)
	}
	return ids, nil
}

// Put associates id with key, appending it to whatever other ids already
// share that key.
func (si *SecondaryIndex) Put(key []byte, id string) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	ids, err := si.readIDs(key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return si.tree.Insert(key, raw)
}

// Remove disassociates id from key, deleting the leaf entry outright once
// the last id sharing that key is gone.
func (si *SecondaryIndex) Remove(key []byte, id string) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	ids, err := si.readIDs(key)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return si.tree.Delete(key)
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return si.tree.Insert(key, raw)
}

// Get returns every id currently associated with key.
func (si *SecondaryIndex) Get(key []byte) ([]string, error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	ids, err := si.readIDs(key)
	if err != nil {
		return nil, err
	}
	return []string(ids), nil
}

// RangeScan returns every id associated with a key in [startKey, endKey].
func (si *SecondaryIndex) RangeScan(startKey, endKey []byte) ([]string, error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	entries, err := si.tree.RangeScan(startKey, endKey)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		var ids entryIDs
		if err := json.Unmarshal(e.Value, &ids); err != nil {
			return nil, fmt.Errorf("decode index entry: %w", err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// Close flushes and releases the index's backing pager.
func (si *SecondaryIndex) Close() error {
	if err := si.pool.FlushAllPages(); err != nil {
		return err
	}
	return si.pool.Close()
}

// EncodeIndexKey renders an arbitrary field value into the B+Tree's
// lexicographically-ordered byte key space. Strings sort as their UTF-8
// bytes; everything else falls back to its JSON text, which is adequate for
// equality lookups but not numerically ordered range scans (range queries on
// numeric fields are a known limitation, see ErrUnboundedQuery callers in
// planner).
func EncodeIndexKey(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
