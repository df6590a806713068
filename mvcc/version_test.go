package mvcc

import "testing"

func TestChainVisibleSkipsNewerVersions(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 1, Body: map[string]any{"v": 1}})
	c.append(&Version{CommitTS: 5, Body: map[string]any{"v": 5}})
	c.append(&Version{CommitTS: 10, Body: map[string]any{"v": 10}})

	v := c.visible(7)
	if v == nil || v.CommitTS != 5 {
		t.Fatalf("expected version at commit_ts 5, got %v", v)
	}
}

func TestChainVisibleBeforeFirstVersionIsNil(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 10, Body: map[string]any{"v": 10}})

	if v := c.visible(5); v != nil {
		t.Fatalf("expected no visible version before first commit, got %v", v)
	}
}

func TestChainVisibleHidesTombstone(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 1, Body: map[string]any{"v": 1}})
	c.append(&Version{CommitTS: 2, Tombstone: true})

	if v := c.visible(2); v != nil {
		t.Fatalf("expected deleted document to be invisible, got %v", v)
	}
	if v := c.visible(1); v == nil {
		t.Fatal("expected pre-delete snapshot to still see the document")
	}
}

func TestChainLatestReturnsMostRecentRegardlessOfSnapshot(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 1, Body: map[string]any{"v": 1}})
	c.append(&Version{CommitTS: 2, Tombstone: true})

	v := c.latest()
	if v == nil || !v.Tombstone {
		t.Fatalf("expected latest to be the tombstone, got %v", v)
	}
}

func TestChainGCKeepsNewestDominatingVersion(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 1, Body: map[string]any{"v": 1}})
	c.append(&Version{CommitTS: 5, Body: map[string]any{"v": 5}})
	c.append(&Version{CommitTS: 10, Body: map[string]any{"v": 10}})

	c.gc(7)

	if len(c.versions) != 2 {
		t.Fatalf("expected 2 versions to remain, got %d", len(c.versions))
	}
	if c.versions[0].CommitTS != 5 {
		t.Fatalf("expected oldest remaining version at commit_ts 5, got %d", c.versions[0].CommitTS)
	}
}

func TestChainGCNoOpWhenLowWaterBeforeFirstVersion(t *testing.T) {
	c := newChain()
	c.append(&Version{CommitTS: 5, Body: map[string]any{"v": 5}})
	c.append(&Version{CommitTS: 10, Body: map[string]any{"v": 10}})

	c.gc(1)

	if len(c.versions) != 2 {
		t.Fatalf("expected no versions reclaimed, got %d remaining", len(c.versions))
	}
}
