package diskcache

import (
	"context"
	"testing"
	"time"

	"github.com/cachekit/diskcache/backend"
	"github.com/cachekit/diskcache/backend/backendtest"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal(`condition not met before timeout`)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestCache(t *testing.T) (*Cache, *backendtest.Memory) {
	t.Helper()
	mem := backendtest.NewMemory()
	c := New(Config{Backend: mem, QueueCapacity: 16})
	t.Cleanup(func() { c.Dispose(context.Background()) })
	return c, mem
}

func TestNew_panicsOnNilBackend(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal(`expected a panic for a nil Backend`)
		}
	}()
	New(Config{})
}

func TestCache_ZeroValueIsUninitialized(t *testing.T) {
	var c Cache
	if c.Status() != StateUninitialized {
		t.Fatalf(`expected StateUninitialized, got %v`, c.Status())
	}
	if err := c.Update(context.Background(), Entry{Key: `x`}); err != ErrNotAlive {
		t.Fatalf(`expected ErrNotAlive, got %v`, err)
	}
}

func TestCache_Update_emptyKeyRejected(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.Update(context.Background(), Entry{}); err != ErrEmptyKey {
		t.Fatalf(`expected ErrEmptyKey, got %v`, err)
	}
}

// S1 — cancellation race.
func TestScenario_S1_CancellationRace(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`a`, []byte(`1`), 0, true)); err != nil {
		t.Fatal(err)
	}

	entry, ok := c.Get(ctx, `a`)
	if !ok || string(entry.Value) != `1` {
		t.Fatalf(`expected ("1", true), got (%q, %v)`, entry.Value, ok)
	}
	if c.purgatory.Contains(`a`) {
		t.Fatal(`expected purgatory to no longer contain "a"`)
	}

	waitUntil(t, time.Second, func() bool { return c.queue.Len() == 0 })
	time.Sleep(10 * time.Millisecond) // let the in-flight dispatch (a no-op, since cancelled) finish

	if _, found, _ := mem.Get(ctx, `a`); found {
		t.Fatal(`expected no backend row for "a" after queue drain`)
	}
}

// S2 — persistence happy path.
func TestScenario_S2_PersistenceHappyPath(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`b`, []byte(`2`), 0, true)); err != nil {
		t.Fatal(err)
	}

	waitUntil(t, time.Second, func() bool {
		_, found, _ := mem.Get(ctx, `b`)
		return found
	})
	if c.purgatory.Contains(`b`) {
		t.Fatal(`expected purgatory to be empty for "b" after it is persisted`)
	}

	entry, ok := c.Get(ctx, `b`)
	if !ok || string(entry.Value) != `2` {
		t.Fatalf(`expected ("2", true) via backend, got (%q, %v)`, entry.Value, ok)
	}
}

// S3 — overwrite-then-cancel.
func TestScenario_S3_OverwriteThenCancel(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`c`, []byte(`10`), 0, true)); err != nil {
		t.Fatal(err)
	}
	if err := c.Update(ctx, NewEntry(`c`, []byte(`20`), 0, true)); err != nil {
		t.Fatal(err)
	}

	entry, ok := c.Get(ctx, `c`)
	if !ok || string(entry.Value) != `20` {
		t.Fatalf(`expected ("20", true), got (%q, %v)`, entry.Value, ok)
	}

	waitUntil(t, time.Second, func() bool { return c.queue.Len() == 0 })
	time.Sleep(10 * time.Millisecond)

	if _, found, _ := mem.Get(ctx, `c`); found {
		t.Fatal(`expected no backend row for "c" after queue drain`)
	}
}

// S4 — expiry sweep.
func TestScenario_S4_ExpirySweep(t *testing.T) {
	mem := backendtest.NewMemory()
	now := time.Now()
	mem.Now = func() time.Time { return now }
	c := New(Config{Backend: mem, QueueCapacity: 16})
	defer c.Dispose(context.Background())
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`d`, []byte(`3`), time.Second, false)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, time.Second, func() bool {
		_, found, _ := mem.Get(ctx, `d`)
		return found
	})

	now = now.Add(2 * time.Second)
	if n := mem.Sweep(); n != 1 {
		t.Fatalf(`expected sweep to remove 1 row, removed %d`, n)
	}
	if _, ok := c.Get(ctx, `d`); ok {
		t.Fatal(`expected "d" to be gone after expiry sweep`)
	}
}

// S5 — eternal bypass.
func TestScenario_S5_EternalBypass(t *testing.T) {
	mem := backendtest.NewMemory()
	now := time.Now()
	mem.Now = func() time.Time { return now }
	c := New(Config{Backend: mem, QueueCapacity: 16})
	defer c.Dispose(context.Background())
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`e`, []byte(`4`), time.Second, true)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, time.Second, func() bool {
		_, found, _ := mem.Get(ctx, `e`)
		return found
	})

	now = now.Add(time.Hour)
	if n := mem.Sweep(); n != 0 {
		t.Fatalf(`expected sweep to remove nothing for an eternal entry, removed %d`, n)
	}
	entry, ok := c.Get(ctx, `e`)
	if !ok || string(entry.Value) != `4` {
		t.Fatalf(`expected ("4", true), got (%q, %v)`, entry.Value, ok)
	}
}

// S6 — dispose drops subsequent updates.
func TestScenario_S6_DisposeDropsSubsequentUpdates(t *testing.T) {
	mem := backendtest.NewMemory()
	c := New(Config{Backend: mem, QueueCapacity: 16})
	ctx := context.Background()

	c.Dispose(ctx)

	if err := c.Update(ctx, NewEntry(`f`, []byte(`5`), 0, true)); err != ErrNotAlive {
		t.Fatalf(`expected ErrNotAlive, got %v`, err)
	}
	if c.Status() != StateDisposed {
		t.Fatalf(`expected StateDisposed, got %v`, c.Status())
	}
	if _, found, _ := mem.Get(ctx, `f`); found {
		t.Fatal(`expected no backend row for "f"`)
	}

	// Dispose must be idempotent.
	c.Dispose(ctx)
}

func TestCache_Remove_isIdempotent(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`g`, []byte(`6`), 0, true)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, time.Second, func() bool {
		_, found, _ := mem.Get(ctx, `g`)
		return found
	})

	if !c.Remove(ctx, `g`) {
		t.Fatal(`expected first Remove to report true`)
	}
	if c.Remove(ctx, `g`) {
		t.Fatal(`expected second Remove of an absent key to report false`)
	}
}

func TestCache_RemoveAll(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`h1`, []byte(`1`), 0, true)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, time.Second, func() bool {
		_, found, _ := mem.Get(ctx, `h1`)
		return found
	})

	if err := c.RemoveAll(ctx); err != nil {
		t.Fatal(err)
	}
	if c.purgatory.Len() != 0 {
		t.Fatal(`expected purgatory to be empty after RemoveAll`)
	}
	if _, found, _ := mem.Get(ctx, `h1`); found {
		t.Fatal(`expected no rows after RemoveAll`)
	}
}

func TestCache_GetGroupKeys_unsupported(t *testing.T) {
	c, _ := newTestCache(t) // backendtest.Memory implements GroupLister, so use a backend that doesn't
	if _, err := c.GetGroupKeys(context.Background(), `group.`); err != nil {
		t.Fatalf(`expected backendtest.Memory to support group listing, got %v`, err)
	}

	var unsupported backend.Backend = backendtest.NewMemory()
	type noGroupLister struct{ backend.Backend }
	c2 := New(Config{Backend: noGroupLister{unsupported}})
	defer c2.Dispose(context.Background())
	if _, err := c2.GetGroupKeys(context.Background(), `group.`); err != backend.ErrUnsupported {
		t.Fatalf(`expected ErrUnsupported, got %v`, err)
	}
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, NewEntry(`i`, []byte(`1`), 0, true)); err != nil {
		t.Fatal(err)
	}
	c.Get(ctx, `i`)
	c.Remove(ctx, `never-existed`)

	stats := c.Stats()
	if stats.UpdateCount != 1 {
		t.Errorf(`expected UpdateCount 1, got %d`, stats.UpdateCount)
	}
	if stats.GetCount != 1 {
		t.Errorf(`expected GetCount 1, got %d`, stats.GetCount)
	}
	if stats.PurgatoryHits != 1 {
		t.Errorf(`expected PurgatoryHits 1, got %d`, stats.PurgatoryHits)
	}
	if stats.RemoveCount != 1 {
		t.Errorf(`expected RemoveCount 1, got %d`, stats.RemoveCount)
	}
}
