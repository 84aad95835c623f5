package indexer

import "sync/atomic"

// IndexLock is a non-blocking single-run guard. Concurrent Index calls
// on the same Indexer fail fast instead of queueing.
type IndexLock struct {
	state atomic.Int32
}

// TryAcquire attempts to take the lock without blocking.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Call only after a successful TryAcquire.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
