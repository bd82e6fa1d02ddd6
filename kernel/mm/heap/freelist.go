package heap

import "unsafe"

// listNode describes a free region. The node is stored in-place at the
// start of the freed memory it describes: a region is only ever viewed as
// raw bytes while allocated or as a listNode while linked into the free
// list, never both.
type listNode struct {
	size uintptr
	next *listNode
}

const (
	// minBlockSize is the smallest region the free-list strategy will
	// track; anything smaller cannot hold the in-place node header.
	minBlockSize = unsafe.Sizeof(listNode{})

	// nodeAlign is the alignment every tracked region must satisfy so a
	// node header can be written at its start.
	nodeAlign = unsafe.Alignof(listNode{})
)

func (n *listNode) startAddr() uintptr {
	return uintptr(unsafe.Pointer(n))
}

func (n *listNode) endAddr() uintptr {
	return n.startAddr() + n.size
}

// listAllocator serves allocations from a singly-linked list of free
// regions threaded through the freed memory itself, so occupied regions
// carry zero bookkeeping overhead. Allocation is first-fit with splitting;
// freed regions are relinked at the list head and adjacent regions are not
// coalesced. Long allocate/free sequences of varying sizes therefore
// accumulate external fragmentation — a documented limitation that is
// acceptable for the bounded heap sizes this kernel targets.
type listAllocator struct {
	head                listNode
	heapStart, heapSize uintptr
	allocCount          uint64
}

func (l *listAllocator) init(heapStart, heapSize uintptr) {
	l.heapStart = heapStart
	l.heapSize = heapSize
	l.allocCount = 0
	l.head = listNode{}
	l.addFreeRegion(heapStart, heapSize)
}

// addFreeRegion writes a node header at addr and links the region at the
// head of the free list. The region must be node-aligned and large enough
// to hold the header.
func (l *listAllocator) addFreeRegion(addr, size uintptr) {
	node := (*listNode)(unsafe.Pointer(addr))
	node.size = size
	node.next = l.head.next
	l.head.next = node
}

// alloc scans the free list for the first region that can fit size bytes at
// the requested alignment. The matched region is unlinked and, if the space
// left over after the allocation can hold a node header, split with the
// remainder relinked as a new free region.
func (l *listAllocator) alloc(size, align uintptr) (uintptr, bool) {
	blockSize := allocBlockSize(size)

	for prev, region := &l.head, l.head.next; region != nil; prev, region = region, region.next {
		allocStart, ok := allocFromRegion(region, blockSize, align)
		if !ok {
			continue
		}

		prev.next = region.next

		if excess := region.endAddr() - (allocStart + blockSize); excess > 0 {
			l.addFreeRegion(allocStart+blockSize, excess)
		}

		l.allocCount++
		return allocStart, true
	}

	return 0, false
}

// free relinks the freed region at the head of the free list. The caller
// must pass the size and alignment the region was allocated with.
func (l *listAllocator) free(addr, size, align uintptr) {
	l.addFreeRegion(addr, allocBlockSize(size))
	l.allocCount--
}

func (l *listAllocator) stats() Stats {
	var freeBytes uintptr
	for region := l.head.next; region != nil; region = region.next {
		freeBytes += region.size
	}

	return Stats{
		HeapStart:   l.heapStart,
		HeapSize:    l.heapSize,
		UsedBytes:   l.heapSize - freeBytes,
		FreeBytes:   freeBytes,
		Allocations: l.allocCount,
	}
}

// allocFromRegion checks whether a blockSize allocation at the requested
// alignment fits inside region. It fails if the leftover tail would be too
// small to hold a node header, as that space could never be tracked.
func allocFromRegion(region *listNode, blockSize, align uintptr) (uintptr, bool) {
	allocStart := alignUp(region.startAddr(), align)
	allocEnd := allocStart + blockSize

	if allocEnd < allocStart || allocEnd > region.endAddr() {
		return 0, false
	}

	if excess := region.endAddr() - allocEnd; excess > 0 && excess < minBlockSize {
		return 0, false
	}

	return allocStart, true
}

// allocBlockSize widens the requested size so that the block can later hold
// a node header and keeps successor regions node-aligned.
func allocBlockSize(size uintptr) uintptr {
	if size < minBlockSize {
		size = minBlockSize
	}

	return alignUp(size, nodeAlign)
}
