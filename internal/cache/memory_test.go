package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryResponseCache_TTL(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{})

	ctx := context.Background()
	key := "resp:test"
	val := []byte(`{"matches":[]}`)

	if err := c.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != string(val) {
		t.Fatalf("expected %q, got %q", val, got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}

	// Lazy expiry also removes the entry from the map.
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, Len() = %d", c.Len())
	}
}

func TestMemoryResponseCache_SetCopiesPayload(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{})
	ctx := context.Background()

	buf := []byte(`{"score":1}`)
	if err := c.Set(ctx, "resp:copy", buf, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	buf[9] = '2' // mutate caller's buffer after Set

	got, hit, err := c.Get(ctx, "resp:copy")
	if err != nil || !hit {
		t.Fatalf("Get failed: hit=%v err=%v", hit, err)
	}
	if string(got) != `{"score":1}` {
		t.Fatalf("cached payload aliased caller buffer: %q", got)
	}
}

func TestMemoryResponseCache_SetReplacesEntry(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "resp:r", []byte("old"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "resp:r", []byte("new"), time.Minute); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	got, hit, _ := c.Get(ctx, "resp:r")
	if !hit || string(got) != "new" {
		t.Fatalf("expected refreshed payload, got hit=%v %q", hit, got)
	}
	if c.Len() != 1 {
		t.Fatalf("refresh must replace, not add: Len() = %d", c.Len())
	}
}

func TestMemoryResponseCache_SweepBelowCapIsNoop(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{SoftCap: 10, MaxAge: time.Minute})
	ctx := context.Background()

	// Entries far older than max age, but count stays under the cap.
	base := time.Now()
	c.now = func() time.Time { return base.Add(-time.Hour) }
	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, fmt.Sprintf("resp:%d", i), []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	c.now = func() time.Time { return base }

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 || c.Len() != 5 {
		t.Fatalf("sweep below cap must not evict: removed=%d len=%d", removed, c.Len())
	}
}

func TestMemoryResponseCache_SweepRemovesOnlyAgedEntries(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{SoftCap: 4, MaxAge: 2 * time.Minute})
	ctx := context.Background()

	base := time.Now()

	// Three entries written five minutes ago: past max age.
	c.now = func() time.Time { return base.Add(-5 * time.Minute) }
	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("resp:old-%d", i), []byte("stale"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	// Three fresh entries just now: cache is over its cap of 4.
	c.now = func() time.Time { return base }
	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("resp:new-%d", i), []byte("fresh"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 aged entries removed, got %d", removed)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 fresh entries to survive, Len() = %d", c.Len())
	}
	for i := 0; i < 3; i++ {
		if _, hit, _ := c.Get(ctx, fmt.Sprintf("resp:new-%d", i)); !hit {
			t.Fatalf("fresh entry resp:new-%d was evicted", i)
		}
	}
}

func TestMemoryResponseCache_SweepNeverRemovesFreshUnderPressure(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{SoftCap: 2, MaxAge: 2 * time.Minute})
	ctx := context.Background()

	// Way over capacity, but everything is freshly written.
	for i := 0; i < 20; i++ {
		if err := c.Set(ctx, fmt.Sprintf("resp:%d", i), []byte("fresh"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 0 || c.Len() != 20 {
		t.Fatalf("age check only: removed=%d len=%d", removed, c.Len())
	}
}

func TestMemoryResponseCache_ZeroTTLDeletes(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "resp:z", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "resp:z", []byte("x"), 0); err != nil {
		t.Fatalf("Set with zero ttl failed: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "resp:z"); hit {
		t.Fatalf("zero ttl must delete the entry")
	}
}

func TestMemoryResponseCache_Clear(t *testing.T) {
	c := NewMemoryResponseCache(MemoryConfig{})
	ctx := context.Background()

	_ = c.Set(ctx, "resp:a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "resp:b", []byte("2"), time.Minute)
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("Clear left %d entries", c.Len())
	}
}
