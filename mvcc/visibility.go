package mvcc

import (
	"sync"
	"time"
)

// GarbageCollector is a background service that periodically reclaims
// document versions no longer reachable by any active snapshot, by
// delegating to the store's own garbage_collect operation at the current
// low-water mark.
type GarbageCollector struct {
	store      *Store
	gcInterval time.Duration
	running    bool
	stopChan   chan struct{}
	mu         sync.Mutex
}

// NewGarbageCollector creates a garbage collector bound to store, running
// every gcInterval while started.
func NewGarbageCollector(store *Store, gcInterval time.Duration) *GarbageCollector {
	return &GarbageCollector{
		store:      store,
		gcInterval: gcInterval,
		stopChan:   make(chan struct{}),
	}
}

// Start starts the garbage collection background process. A second Start on
// an already-running collector is a no-op.
func (gc *GarbageCollector) Start() {
	gc.mu.Lock()
	if gc.running {
		gc.mu.Unlock()
		return
	}
	gc.running = true
	gc.stopChan = make(chan struct{})
	stopChan := gc.stopChan
	gc.mu.Unlock()

	go gc.run(stopChan)
}

// Stop stops the garbage collection background process.
func (gc *GarbageCollector) Stop() {
	gc.mu.Lock()
	if !gc.running {
		gc.mu.Unlock()
		return
	}
	gc.running = false
	close(gc.stopChan)
	gc.mu.Unlock()
}

// run executes the garbage collection loop.
func (gc *GarbageCollector) run(stopChan chan struct{}) {
	ticker := time.NewTicker(gc.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gc.performGC()
		case <-stopChan:
			return
		}
	}
}

// performGC reclaims every version dominated by a newer version at or
// before the oldest pinned snapshot.
func (gc *GarbageCollector) performGC() {
	gc.store.GarbageCollect(gc.store.snapshots.LowWater())
}

// GetStats returns garbage collection statistics.
func (gc *GarbageCollector) GetStats() GCStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	return GCStats{
		Running:  gc.running,
		Interval: gc.gcInterval,
	}
}

// GCStats contains garbage collection statistics.
type GCStats struct {
	Running  bool
	Interval time.Duration
}
