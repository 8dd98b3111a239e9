package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/chatrelay/internal/adapter/tiered"
	"github.com/Strob0t/chatrelay/internal/port/cache/cachetest"
)

// memCache is a simple in-memory cache for testing. err, when set, is
// returned from every call.
type memCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

var errDown = errors.New("nats down")

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L1
	l1.data["key1"] = []byte("val1")

	val, found, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "val1" {
		t.Fatalf("expected val1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L2
	l2.data["key2"] = []byte("val2")

	val, found, err := c.Get(ctx, "key2")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != "val2" {
		t.Fatalf("expected val2, got %s", val)
	}

	// Verify backfill into L1
	l1Val, ok := l1.data["key2"]
	if !ok {
		t.Fatal("expected L1 backfill")
	}
	if string(l1Val) != "val2" {
		t.Fatalf("expected backfilled val2, got %s", l1Val)
	}
}

func TestTiered_Miss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "key3", []byte("val3"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["key3"]; !ok {
		t.Fatal("expected key3 in L1")
	}
	if _, ok := l2.data["key3"]; !ok {
		t.Fatal("expected key3 in L2")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["key4"] = []byte("val4")
	l2.data["key4"] = []byte("val4")

	if err := c.Delete(ctx, "key4"); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["key4"]; ok {
		t.Fatal("expected key4 deleted from L1")
	}
	if _, ok := l2.data["key4"]; ok {
		t.Fatal("expected key4 deleted from L2")
	}
}

func TestTiered_L2ReadFailureDegradesToMiss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.err = errDown
	c := tiered.New(l1, l2, time.Minute)

	_, found, err := c.Get(context.Background(), "history:c1")
	if err != nil {
		t.Fatalf("expected degraded miss, got error %v", err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_L2WriteFailureStillWritesL1(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l2.err = errDown
	c := tiered.New(l1, l2, time.Minute)

	err := c.Set(context.Background(), "history:c1", []byte("[]"), time.Hour)
	if !errors.Is(err, errDown) {
		t.Fatalf("expected L2 error, got %v", err)
	}
	if _, ok := l1.data["history:c1"]; !ok {
		t.Fatal("expected L1 to be written despite L2 failure")
	}
}

func TestTiered_L1TTLCapped(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), 24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if l1.ttls["k"] != time.Minute {
		t.Errorf("L1 ttl = %v, want 1m", l1.ttls["k"])
	}
	if l2.ttls["k"] != 24*time.Hour {
		t.Errorf("L2 ttl = %v, want 24h", l2.ttls["k"])
	}
}

func TestTiered_DeleteReportsErrors(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	l1.data["k"] = []byte("v")
	l2.err = errDown
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Delete(context.Background(), "k"); !errors.Is(err, errDown) {
		t.Fatalf("expected L2 delete error, got %v", err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Fatal("L1 entry should be removed even when L2 fails")
	}
}

func TestTiered_Compliance(t *testing.T) {
	cachetest.Run(t, tiered.New(newMemCache(), newMemCache(), time.Minute))
}
