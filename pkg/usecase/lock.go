package usecase

import "sync/atomic"

// SyncLock is the single process-wide gate serializing every writer of the
// leave document and the active index. Acquisition is non-blocking: callers
// that fail either enqueue (callback handler) or skip the cycle (pollers),
// so there is no lock-wait anywhere in the process.
type SyncLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock without blocking; false when a writer holds it
func (l *SyncLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock
func (l *SyncLock) Release() {
	l.held.Store(false)
}

// IsHeld reports whether a writer currently holds the lock
func (l *SyncLock) IsHeld() bool {
	return l.held.Load()
}
