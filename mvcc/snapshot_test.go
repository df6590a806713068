package mvcc

import "testing"

func TestSnapshotManagerBeginCapturesWatermark(t *testing.T) {
	sm := NewSnapshotManager()
	sm.advance(5)

	ts := sm.Begin()
	if ts != 5 {
		t.Fatalf("expected snapshot at watermark 5, got %d", ts)
	}
	sm.Release(ts)
}

func TestSnapshotManagerLowWaterPinsOldestActiveSnapshot(t *testing.T) {
	sm := NewSnapshotManager()
	sm.advance(5)
	old := sm.Begin() // pins 5

	sm.advance(10)
	sm.advance(15)

	if lw := sm.LowWater(); lw != 5 {
		t.Fatalf("expected low water pinned at 5, got %d", lw)
	}

	sm.Release(old)

	if lw := sm.LowWater(); lw != 15 {
		t.Fatalf("expected low water at current watermark 15 after release, got %d", lw)
	}
}

func TestSnapshotManagerMultipleHoldersOfSameTimestamp(t *testing.T) {
	sm := NewSnapshotManager()
	sm.advance(5)

	a := sm.Begin()
	b := sm.Begin()
	sm.advance(20)

	sm.Release(a)
	if lw := sm.LowWater(); lw != 5 {
		t.Fatalf("expected pin to survive one of two releases, got %d", lw)
	}

	sm.Release(b)
	if lw := sm.LowWater(); lw != 20 {
		t.Fatalf("expected pin released after both holders gone, got %d", lw)
	}
}

func TestSnapshotManagerAdvanceNeverGoesBackward(t *testing.T) {
	sm := NewSnapshotManager()
	sm.advance(10)
	sm.advance(3)

	if w := sm.Watermark(); w != 10 {
		t.Fatalf("expected watermark to stay at 10, got %d", w)
	}
}
