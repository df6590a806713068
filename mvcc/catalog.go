package mvcc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// IndexCatalog persists each secondary index's B+Tree root page ID across
// restarts, the way the teacher's system catalog tracks root pages per
// collection field. Without it a reopened index would have no way to find
// its tree after a root split moved the root to a new page.
type IndexCatalog struct {
	path string
	mu   sync.Mutex
	root map[string]uint64 // "collection/index" -> root page id
}

// OpenIndexCatalog loads (or creates) the catalog file at
// <dataDir>/indexes/catalog.json.
func OpenIndexCatalog(dataDir string) (*IndexCatalog, error) {
	dir := filepath.Join(dataDir, "indexes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &IndexCatalog{path: filepath.Join(dir, "catalog.json"), root: make(map[string]uint64)}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.root); err != nil {
		return nil, err
	}
	return c, nil
}

func catalogKey(collection, index string) string {
	return collection + "/" + index
}

// RootID returns the persisted root page id for (collection, index), and
// whether one was found.
func (c *IndexCatalog) RootID(collection, index string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.root[catalogKey(collection, index)]
	return id, ok
}

// SetRootID records the current root page id for (collection, index) and
// persists the catalog immediately.
func (c *IndexCatalog) SetRootID(collection, index string, rootID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root[catalogKey(collection, index)] = rootID
	data, err := json.MarshalIndent(c.root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
