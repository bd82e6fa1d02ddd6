package heap

import (
	"helios/kernel"
	"helios/kernel/kfmt"
	"helios/kernel/sync"
)

var (
	// ErrAlreadyInitialized is returned when Init is invoked more than
	// once; the kernel heap is set up exactly once after its backing
	// region has been mapped and is never reinitialized.
	ErrAlreadyInitialized = &kernel.Error{Module: "heap", Message: "kernel heap is already initialized"}

	// ErrNotInitialized reports a dynamic allocation attempt before the
	// heap has been set up.
	ErrNotInitialized = &kernel.Error{Module: "heap", Message: "kernel heap is not initialized"}

	errRegionExhausted = &kernel.Error{Module: "heap", Message: "heap region exhausted"}

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	// kernelHeap is the process-wide allocator instance behind Alloc and
	// Free. Its strategy field doubles as the initialized flag.
	kernelHeap LockedAllocator
)

// StrategyKind selects the allocation strategy backing the heap.
type StrategyKind uint8

const (
	// BumpStrategy selects the bump-cursor allocator: O(1) allocation,
	// no reclamation of individual frees.
	BumpStrategy StrategyKind = iota

	// FreeListStrategy selects the free-list allocator: first-fit
	// allocation with splitting and support for arbitrary frees.
	FreeListStrategy
)

// strategy is the allocation contract both heap strategies implement.
type strategy interface {
	init(heapStart, heapSize uintptr)
	alloc(size, align uintptr) (uintptr, bool)
	free(addr, size, align uintptr)
	stats() Stats
}

// Stats describes the utilization of a heap region.
type Stats struct {
	HeapStart   uintptr
	HeapSize    uintptr
	UsedBytes   uintptr
	FreeBytes   uintptr
	Allocations uint64
}

// LockedAllocator wraps an allocation strategy with a busy-wait lock so
// that concurrent or re-entrant allocation requests cannot observe an
// inconsistent cursor or free-list state. Code running while the lock is
// held must never try to reacquire it.
type LockedAllocator struct {
	lock sync.Spinlock
	impl strategy
}

// Init attaches a strategy to the allocator and hands it the backing
// region. It fails with ErrAlreadyInitialized if invoked twice.
func (la *LockedAllocator) Init(heapStart, heapSize uintptr, kind StrategyKind) *kernel.Error {
	la.lock.Acquire()
	defer la.lock.Release()

	if la.impl != nil {
		return ErrAlreadyInitialized
	}

	switch kind {
	case FreeListStrategy:
		la.impl = new(listAllocator)
	default:
		la.impl = new(bumpAllocator)
	}
	la.impl.init(heapStart, heapSize)

	return nil
}

// Alloc reserves size bytes aligned to align and returns the region
// address, or false if the heap cannot satisfy the request.
func (la *LockedAllocator) Alloc(size, align uintptr) (uintptr, bool) {
	la.lock.Acquire()
	defer la.lock.Release()

	if la.impl == nil {
		return 0, false
	}

	return la.impl.alloc(size, align)
}

// Free releases a region previously returned by Alloc. The caller must
// supply the size and alignment used for the allocation.
func (la *LockedAllocator) Free(addr, size, align uintptr) {
	la.lock.Acquire()
	defer la.lock.Release()

	if la.impl == nil {
		return
	}

	la.impl.free(addr, size, align)
}

// ReadStats returns a snapshot of the heap utilization counters.
func (la *LockedAllocator) ReadStats() Stats {
	la.lock.Acquire()
	defer la.lock.Release()

	if la.impl == nil {
		return Stats{}
	}

	return la.impl.stats()
}

// Init sets up the kernel heap over the previously mapped backing region
// [heapStart, heapStart+heapSize) using the requested strategy. It must be
// invoked exactly once before any call to Alloc or Free.
func Init(heapStart, heapSize uintptr, kind StrategyKind) *kernel.Error {
	return kernelHeap.Init(heapStart, heapSize, kind)
}

// Alloc reserves size bytes aligned to align from the kernel heap and
// returns the region address.
//
// Exhaustion is unrecoverable: dynamic containers throughout the kernel do
// not check every allocation, so rather than returning a value most call
// sites would ignore, Alloc reports the region diagnostics and terminates
// the kernel. The same applies to allocation attempts before Init.
func Alloc(size, align uintptr) uintptr {
	addr, ok := kernelHeap.Alloc(size, align)
	if !ok {
		if kernelHeap.impl == nil {
			panicFn(ErrNotInitialized)
			return 0
		}

		stats := kernelHeap.ReadStats()
		kfmt.Printf("[heap] region 0x%x - 0x%x exhausted: used: %d, free: %d, failed request: %d bytes (align %d)\n",
			stats.HeapStart, stats.HeapStart+stats.HeapSize, stats.UsedBytes, stats.FreeBytes, size, align)
		panicFn(errRegionExhausted)
		return 0
	}

	return addr
}

// Free releases a region previously returned by Alloc back to the kernel
// heap. The caller must supply the size and alignment used for the
// allocation.
func Free(addr, size, align uintptr) {
	kernelHeap.Free(addr, size, align)
}

// ReadStats returns a snapshot of the kernel heap utilization counters.
func ReadStats() Stats {
	return kernelHeap.ReadStats()
}
