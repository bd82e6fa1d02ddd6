// Package heap implements the kernel's dynamic memory allocator: two
// interchangeable allocation strategies behind a spinlock-guarded,
// process-wide instance.
package heap

// bumpAllocator hands out memory by advancing a cursor through the backing
// region. Allocation is O(1) and carries no per-allocation metadata; frees
// are a no-op and memory is only reclaimed by resetting the whole region.
// This makes the strategy a good fit for short-lived boot allocations.
type bumpAllocator struct {
	heapStart, heapEnd uintptr
	next               uintptr
	allocCount         uint64
}

func (b *bumpAllocator) init(heapStart, heapSize uintptr) {
	b.heapStart = heapStart
	b.heapEnd = heapStart + heapSize
	b.next = heapStart
	b.allocCount = 0
}

// alloc aligns the cursor up to align, checks that size bytes still fit
// before the region end and advances the cursor. It returns false when the
// region is exhausted.
func (b *bumpAllocator) alloc(size, align uintptr) (uintptr, bool) {
	allocStart := alignUp(b.next, align)
	allocEnd := allocStart + size

	if allocEnd < allocStart || allocEnd > b.heapEnd {
		return 0, false
	}

	b.next = allocEnd
	b.allocCount++

	return allocStart, true
}

// free is a no-op: individual bump allocations are never reclaimed.
func (b *bumpAllocator) free(addr, size, align uintptr) {
}

// reset returns the cursor to the region start, releasing every allocation
// at once. It is deliberately not reachable through the public allocator
// interface.
func (b *bumpAllocator) reset() {
	b.next = b.heapStart
	b.allocCount = 0
}

func (b *bumpAllocator) stats() Stats {
	return Stats{
		HeapStart:   b.heapStart,
		HeapSize:    b.heapEnd - b.heapStart,
		UsedBytes:   b.next - b.heapStart,
		FreeBytes:   b.heapEnd - b.next,
		Allocations: b.allocCount,
	}
}

// alignUp rounds addr up to the closest multiple of align. The alignment
// must be a power of two.
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
