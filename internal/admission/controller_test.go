package admission

import (
	"context"
	"testing"
	"time"
)

func TestAllowWriteUnlimitedByDefault(t *testing.T) {
	c := New(Config{})
	for i := 0; i < 1000; i++ {
		if !c.AllowWrite() {
			t.Fatalf("expected unlimited writes with MaxWritesPerSecond=0, rejected at call %d", i)
		}
	}
}

func TestAllowWriteEnforcesRateAndBurst(t *testing.T) {
	c := New(Config{MaxWritesPerSecond: 2})
	if !c.AllowWrite() {
		t.Fatal("expected first write within burst to be allowed")
	}
	if !c.AllowWrite() {
		t.Fatal("expected second write within burst to be allowed")
	}
	if c.AllowWrite() {
		t.Fatal("expected third immediate write to exceed the burst and be rejected")
	}
}

func TestAcquireQueryUnlimitedByDefault(t *testing.T) {
	c := New(Config{})
	release, ok := c.AcquireQuery()
	if !ok {
		t.Fatal("expected unlimited concurrency with MaxConcurrentQueries=0")
	}
	release()
}

func TestAcquireQueryRejectsBeyondLimit(t *testing.T) {
	c := New(Config{MaxConcurrentQueries: 2})

	r1, ok1 := c.AcquireQuery()
	r2, ok2 := c.AcquireQuery()
	if !ok1 || !ok2 {
		t.Fatal("expected both slots within the limit to be acquired")
	}
	if _, ok := c.AcquireQuery(); ok {
		t.Fatal("expected a third concurrent query to be rejected")
	}

	r1()
	if _, ok := c.AcquireQuery(); !ok {
		t.Fatal("expected a slot to free up after release")
	}
	r2()
}

func TestClampLimit(t *testing.T) {
	c := New(Config{MaxResultSetDocs: 50})

	if got := c.ClampLimit(nil); got != nil {
		t.Fatalf("expected nil limit to stay nil, got %v", *got)
	}
	over := 500
	if got := c.ClampLimit(&over); got == nil || *got != 50 {
		t.Fatalf("expected over-cap limit clamped to 50, got %v", got)
	}
	under := 10
	if got := c.ClampLimit(&under); got != &under {
		t.Fatalf("expected under-cap limit returned unchanged")
	}
}

func TestDefaultConfigFillsZeroResultSetAndTimeout(t *testing.T) {
	c := New(Config{})
	if c.maxResultSetDocs != DefaultConfig().MaxResultSetDocs {
		t.Errorf("expected default result-set cap, got %d", c.maxResultSetDocs)
	}
	if c.queryTimeout != DefaultConfig().QueryTimeout {
		t.Errorf("expected default query timeout, got %v", c.queryTimeout)
	}
}

func TestQueryContextRespectsConfiguredTimeout(t *testing.T) {
	c := New(Config{QueryTimeout: 10 * time.Millisecond})
	ctx, cancel := c.QueryContext(context.Background())
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected context to be done after its timeout elapsed")
	}
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", ctx.Err())
	}
}
