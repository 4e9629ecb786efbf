package lockreg

import (
	"sync"
	"testing"
	"time"
)

func TestRegistry_LockExclusive(t *testing.T) {
	r := New(time.Millisecond)

	var mu sync.Mutex
	order := make([]int, 0, 2)

	unlock := r.Lock(`a`)
	done := make(chan struct{})
	go func() {
		defer close(done)
		u := r.Lock(`a`)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		u.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock.Unlock()

	<-done

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf(`expected ordered [1 2], got %v`, order)
	}
}

func TestRegistry_RLockShared(t *testing.T) {
	r := New(time.Millisecond)

	u1 := r.RLock(`k`)
	u2 := r.RLock(`k`)
	// both acquired without blocking each other
	u1.Unlock()
	u2.Unlock()
}

func TestRegistry_DistinctKeysIndependent(t *testing.T) {
	r := New(time.Millisecond)

	uA := r.Lock(`a`)
	uB := r.Lock(`b`)
	uB.Unlock()
	uA.Unlock()
}

func TestRegistry_CleanupReclaims(t *testing.T) {
	r := New(2 * time.Millisecond)

	r.Lock(`a`).Unlock()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.keys.Load(`a`); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(`expected cleanup worker to reclaim unreferenced keyLock`)
}

func TestRegistry_ConcurrentDistinctKeys(t *testing.T) {
	r := New(time.Millisecond)
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				u := r.Lock(string(rune('a' + i%26)))
				u.Unlock()
			}
		}(i)
	}

	wg.Wait()
}
