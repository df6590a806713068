package mvcc

import (
	"testing"

	"github.com/kartikbazzad/coredoc/schema"
)

func openTestIndex(t *testing.T) *SecondaryIndex {
	t.Helper()
	dir := t.TempDir()
	catalog, err := OpenIndexCatalog(dir)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	idx := schema.Index{Name: "by_email", Kind: schema.IndexBTree, FieldPath: "email"}
	si, err := OpenSecondaryIndex(dir, "users", idx, catalog, nil)
	if err != nil {
		t.Fatalf("open secondary index: %v", err)
	}
	t.Cleanup(func() { si.Close() })
	return si
}

func TestSecondaryIndexPutAndGet(t *testing.T) {
	si := openTestIndex(t)

	if err := si.Put([]byte("a@example.com"), "u1"); err != nil {
		t.Fatalf("put: %v", err)
	}

	ids, err := si.Get([]byte("a@example.com"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ids) != 1 || ids[0] != "u1" {
		t.Fatalf("expected [u1], got %v", ids)
	}
}

func TestSecondaryIndexMultipleIDsShareKey(t *testing.T) {
	si := openTestIndex(t)

	if err := si.Put([]byte("shared@example.com"), "u1"); err != nil {
		t.Fatalf("put u1: %v", err)
	}
	if err := si.Put([]byte("shared@example.com"), "u2"); err != nil {
		t.Fatalf("put u2: %v", err)
	}

	ids, err := si.Get([]byte("shared@example.com"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids sharing the key, got %v", ids)
	}
}

func TestSecondaryIndexRemoveDropsEmptyKey(t *testing.T) {
	si := openTestIndex(t)

	if err := si.Put([]byte("a@example.com"), "u1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := si.Remove([]byte("a@example.com"), "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	ids, err := si.Get([]byte("a@example.com"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected key to be fully removed, got %v", ids)
	}
}

func TestSecondaryIndexRemoveKeepsOtherHolders(t *testing.T) {
	si := openTestIndex(t)

	if err := si.Put([]byte("shared@example.com"), "u1"); err != nil {
		t.Fatalf("put u1: %v", err)
	}
	if err := si.Put([]byte("shared@example.com"), "u2"); err != nil {
		t.Fatalf("put u2: %v", err)
	}
	if err := si.Remove([]byte("shared@example.com"), "u1"); err != nil {
		t.Fatalf("remove u1: %v", err)
	}

	ids, err := si.Get([]byte("shared@example.com"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(ids) != 1 || ids[0] != "u2" {
		t.Fatalf("expected only u2 to remain, got %v", ids)
	}
}

func TestSecondaryIndexRangeScan(t *testing.T) {
	si := openTestIndex(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := si.Put([]byte(id), id); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	ids, err := si.RangeScan([]byte("a"), []byte("b"))
	if err != nil {
		t.Fatalf("range scan: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids in range [a,b], got %v", ids)
	}
}

func TestIndexCatalogPersistsRootAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	catalog, err := OpenIndexCatalog(dir)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	idx := schema.Index{Name: "by_email", Kind: schema.IndexBTree, FieldPath: "email"}

	si, err := OpenSecondaryIndex(dir, "users", idx, catalog, nil)
	if err != nil {
		t.Fatalf("open secondary index: %v", err)
	}
	if err := si.Put([]byte("a@example.com"), "u1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := si.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	catalog2, err := OpenIndexCatalog(dir)
	if err != nil {
		t.Fatalf("reopen catalog: %v", err)
	}
	if _, ok := catalog2.RootID("users", "by_email"); !ok {
		t.Fatal("expected persisted root id to survive reopen")
	}

	si2, err := OpenSecondaryIndex(dir, "users", idx, catalog2, nil)
	if err != nil {
		t.Fatalf("reopen secondary index: %v", err)
	}
	defer si2.Close()

	ids, err := si2.Get([]byte("a@example.com"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if len(ids) != 1 || ids[0] != "u1" {
		t.Fatalf("expected [u1] to survive reopen, got %v", ids)
	}
}
