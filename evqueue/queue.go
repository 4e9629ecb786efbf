// Package evqueue implements the disk cache's asynchronous event queue
// (spec component C4): a bounded FIFO of persistence events, drained by a
// single worker goroutine that dispatches each event to a Handler.
//
// Events carry only keys, never entries — the worker reads the live item
// back from purgatory at dispatch time, which is how cancellation works
// without the queue ever being scanned (spec.md §4.2/§4.3). The queue
// itself owns no knowledge of purgatory, locking, or the backend; that
// coupling lives entirely in the Handler it's constructed with, following
// the same listener-invoked-by-worker shape this package is grounded on,
// but as an explicit action sum type rather than a closure-captured
// listener, so the worker's dispatch is visible instead of indirected
// through a callback.
package evqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type (
	// Action identifies the variant of a queued Event.
	Action int

	// Event is a single queued persistence instruction. Key is only
	// meaningful for ActionPut and ActionRemove.
	Event struct {
		Action Action
		Key    string
	}

	// Handler receives dispatched events from the queue's worker. New
	// always starts exactly one worker goroutine, so Handler methods are
	// never invoked concurrently with each other; any per-key
	// serialization against concurrent facade calls (spec.md's
	// "fetch-and-validate" contract) is still the Handler's own
	// responsibility to acquire, not evqueue's.
	Handler interface {
		OnPut(ctx context.Context, key string)
		OnRemove(ctx context.Context, key string)
		OnRemoveAll(ctx context.Context)
		OnDispose(ctx context.Context)
	}

	// Queue is a bounded FIFO of Events, drained by a background worker.
	// The zero value is not usable; construct with New.
	Queue struct {
		handler Handler

		ctx    context.Context
		cancel context.CancelFunc

		done     chan struct{} // closed once the worker has fully exited
		stopped  chan struct{} // closed by Shutdown/Close/Destroy to stop accepting new events
		stopOnce sync.Once

		events chan Event

		destroyed int32 // atomic bool: FatalBackendError transitioned us to destroyed (spec.md §7)
	}
)

const (
	ActionPut Action = iota
	ActionRemove
	ActionRemoveAll
	ActionDispose
)

// ErrDestroyed is returned by Append once the queue has been destroyed,
// either by a fatal backend error or by Close/Shutdown/Destroy.
var ErrDestroyed = errors.New(`diskcache/evqueue: queue destroyed`)

// New constructs a Queue with the given bounded capacity (spec.md §6,
// queue_capacity) and starts its worker. capacity <= 0 is treated as
// capacity 1 (an unbuffered channel would deadlock single-goroutine
// callers); there is no unbounded mode.
func New(capacity int, handler Handler) *Queue {
	if handler == nil {
		panic(`evqueue: nil handler`)
	}
	if capacity <= 0 {
		capacity = 1
	}

	q := &Queue{
		handler: handler,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		events:  make(chan Event, capacity),
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())

	go q.run()

	return q
}

// Append enqueues event, blocking while the queue is at capacity
// (backpressure, per spec.md §5 suspension points) until either ctx is
// canceled, the queue has been stopped, or room becomes available.
func (q *Queue) Append(ctx context.Context, event Event) error {
	if atomic.LoadInt32(&q.destroyed) != 0 {
		return ErrDestroyed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-q.stopped:
		return ErrDestroyed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrDestroyed
	case <-q.stopped:
		return ErrDestroyed
	case q.events <- event:
		return nil
	}
}

// Destroy transitions the queue to its destroyed state (spec.md §7,
// FatalBackendError): further Append calls fail, and the worker exits
// once it has finished any event currently in flight. Already-queued
// events are discarded, not drained — a fatal backend is assumed unable
// to accept more writes regardless.
func (q *Queue) Destroy() {
	atomic.StoreInt32(&q.destroyed, 1)
	q.stop()
	q.cancel()
}

// Close immediately stops the queue, discarding any events still queued,
// and blocks until the worker has exited. This mirrors the "immediate
// stop" conforming choice documented for dispose() (spec.md §4.4): it
// does not wait for queued events to be dispatched.
func (q *Queue) Close() error {
	q.stop()
	q.cancel()
	<-q.done
	return nil
}

// Shutdown stops the queue from accepting new events, then waits for
// every already-queued event to be dispatched before returning — the
// "graceful drain" conforming choice. If ctx is canceled first, Shutdown
// forces an immediate stop (as Close would) and returns ctx's error.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stop()

	select {
	case <-ctx.Done():
		err := ctx.Err()
		q.cancel()
		<-q.done
		return err
	case <-q.done:
		return nil
	}
}

// Len reports the number of events currently buffered, for monitoring. It is
// a snapshot, not a synchronization point.
func (q *Queue) Len() int {
	return len(q.events)
}

func (q *Queue) stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
}

func (q *Queue) run() {
	defer close(q.done)
	defer q.cancel()

	for {
		select {
		case <-q.ctx.Done():
			return

		case event, ok := <-q.events:
			if !ok || q.ctx.Err() != nil {
				return
			}
			q.dispatch(event)

		case <-q.stopped:
			// Close cancels ctx before or alongside closing stopped, so a
			// canceled ctx here means "discard", not "drain" — check
			// explicitly rather than let select's random tie-break decide.
			if q.ctx.Err() == nil {
				q.drain()
			}
			return
		}
	}
}

// drain dispatches every event already buffered in the channel, then
// returns. Called only after stop(), so no further Append can succeed.
func (q *Queue) drain() {
	for {
		select {
		case event := <-q.events:
			if q.ctx.Err() != nil {
				return
			}
			q.dispatch(event)
		default:
			return
		}
	}
}

func (q *Queue) dispatch(event Event) {
	switch event.Action {
	case ActionPut:
		q.handler.OnPut(q.ctx, event.Key)
	case ActionRemove:
		q.handler.OnRemove(q.ctx, event.Key)
	case ActionRemoveAll:
		q.handler.OnRemoveAll(q.ctx)
	case ActionDispose:
		q.handler.OnDispose(q.ctx)
	}
}
