// Package sync provides the synchronization primitives used by the kernel
// memory manager.
package sync

import "sync/atomic"

var (
	// TODO: replace with real yield function when context-switching is implemented.
	yieldFn func()
)

// spinAttemptsBeforeYielding defines the number of failed acquisition
// attempts after which the spinning task yields (if a yield function has been
// registered).
const spinAttemptsBeforeYielding = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The lock is intentionally not re-entrant;
// any attempt to re-acquire a lock already held by the current task will
// deadlock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
func (l *Spinlock) Acquire() {
	for attempt := uint32(0); !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempt++ {
		if attempt%spinAttemptsBeforeYielding == spinAttemptsBeforeYielding-1 && yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
