// Package diskcache implements a write-back auxiliary cache tier: callers
// submit entries synchronously and get an immediate acknowledgement, while
// persistence to a pluggable Backend happens asynchronously on a worker
// goroutine. A grace window, implemented as a staging map (the purgatory),
// lets a pending write be withdrawn if the same key is read before the
// worker gets to it.
//
// Losing the contents of the write queue is a performance event, not a
// correctness event: this is an optimization tier in front of a primary
// cache, not a write-ahead log.
package diskcache
