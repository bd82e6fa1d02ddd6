package pmm

import (
	"helios/kernel"
	"helios/kernel/mm"
)

var (
	// ErrOutOfMemory is returned when no free frame (or no long-enough
	// run of free frames) is available to satisfy an allocation.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}

	// ErrInvalidAddress is returned when an operation receives an
	// address that is not frame-aligned, lies outside the managed
	// region, or does not refer to an allocated frame.
	ErrInvalidAddress = &kernel.Error{Module: "pmm", Message: "invalid physical address"}

	errBitmapTooSmall = &kernel.Error{Module: "pmm", Message: "bitmap storage cannot track the managed region"}
)

// FrameAllocator hands out physical memory frames from a contiguous memory
// window using a first-fit scan over a frame bitmap. The bitmap is the
// single source of truth for frame ownership; no frame can be allocated
// twice. The allocator is created once at boot and lives for the kernel's
// entire execution.
type FrameAllocator struct {
	bitmap          Bitmap
	startAddress    mm.PhysicalAddress
	totalFrames     uint32
	allocatedFrames uint32
}

// Init sets up the allocator to manage memSize bytes of physical memory
// beginning at start. The bitmap state is stored in the caller-supplied
// storage slice; the Go allocator may not be functional this early in the
// boot sequence so the storage is typically a static buffer carved out by
// the platform bootstrap code.
func (alloc *FrameAllocator) Init(start mm.PhysicalAddress, memSize uint64, storage []uint64) *kernel.Error {
	if !start.IsAligned(mm.FrameSize) {
		return ErrInvalidAddress
	}

	totalFrames := uint32(memSize / uint64(mm.FrameSize))
	if BitmapWordsFor(totalFrames) > len(storage) {
		return errBitmapTooSmall
	}

	alloc.bitmap = NewBitmap(storage, totalFrames)
	alloc.startAddress = start
	alloc.totalFrames = totalFrames
	alloc.allocatedFrames = 0

	return nil
}

// AllocFrame reserves the lowest-indexed free frame and returns its
// physical address. It fails with ErrOutOfMemory if every frame is
// allocated. The scan is O(totalFrames) worst case.
func (alloc *FrameAllocator) AllocFrame() (mm.PhysicalAddress, *kernel.Error) {
	index, ok := alloc.bitmap.FirstClear()
	if !ok {
		return 0, ErrOutOfMemory
	}

	alloc.bitmap.Set(index)
	alloc.allocatedFrames++

	return alloc.frameAddress(index), nil
}

// AllocFrames reserves count contiguous free frames and returns the
// physical address of the first one. It fails with ErrOutOfMemory if no
// long-enough run of free frames exists.
func (alloc *FrameAllocator) AllocFrames(count uint32) (mm.PhysicalAddress, *kernel.Error) {
	startIndex, ok := alloc.bitmap.ConsecutiveClear(count)
	if !ok {
		return 0, ErrOutOfMemory
	}

	for index := startIndex; index < startIndex+count; index++ {
		alloc.bitmap.Set(index)
	}
	alloc.allocatedFrames += count

	return alloc.frameAddress(startIndex), nil
}

// FreeFrame releases a frame previously returned by AllocFrame. The address
// must be frame-aligned and refer to an allocated frame inside the managed
// region; otherwise FreeFrame fails with ErrInvalidAddress before touching
// any allocator state. Releasing a frame is O(1).
func (alloc *FrameAllocator) FreeFrame(addr mm.PhysicalAddress) *kernel.Error {
	index, err := alloc.frameIndex(addr)
	if err != nil {
		return err
	}

	if !alloc.bitmap.IsSet(index) {
		return ErrInvalidAddress
	}

	alloc.bitmap.Clear(index)
	alloc.allocatedFrames--

	return nil
}

// FreeFrames releases count contiguous frames previously returned by
// AllocFrames. The entire run is validated up-front so that either all
// frames are released or none are.
func (alloc *FrameAllocator) FreeFrames(addr mm.PhysicalAddress, count uint32) *kernel.Error {
	startIndex, err := alloc.frameIndex(addr)
	if err != nil {
		return err
	}

	if uint64(startIndex)+uint64(count) > uint64(alloc.totalFrames) {
		return ErrInvalidAddress
	}

	for index := startIndex; index < startIndex+count; index++ {
		if !alloc.bitmap.IsSet(index) {
			return ErrInvalidAddress
		}
	}

	for index := startIndex; index < startIndex+count; index++ {
		alloc.bitmap.Clear(index)
	}
	alloc.allocatedFrames -= count

	return nil
}

// ReserveRange marks count contiguous frames beginning at addr as
// allocated. It is used during early boot to exclude memory that is already
// occupied (the kernel image, the bootstrap page table) from future
// allocations. The entire run is validated up-front so that either all
// frames are reserved or none are.
func (alloc *FrameAllocator) ReserveRange(addr mm.PhysicalAddress, count uint32) *kernel.Error {
	startIndex, err := alloc.frameIndex(addr)
	if err != nil {
		return err
	}

	if uint64(startIndex)+uint64(count) > uint64(alloc.totalFrames) {
		return ErrInvalidAddress
	}

	for index := startIndex; index < startIndex+count; index++ {
		if alloc.bitmap.IsSet(index) {
			return ErrInvalidAddress
		}
	}

	for index := startIndex; index < startIndex+count; index++ {
		alloc.bitmap.Set(index)
	}
	alloc.allocatedFrames += count

	return nil
}

// FreeCount returns the number of free frames.
func (alloc *FrameAllocator) FreeCount() uint32 {
	return alloc.totalFrames - alloc.allocatedFrames
}

// AllocatedCount returns the number of allocated frames.
func (alloc *FrameAllocator) AllocatedCount() uint32 {
	return alloc.allocatedFrames
}

// TotalFrames returns the total number of frames managed by the allocator.
func (alloc *FrameAllocator) TotalFrames() uint32 {
	return alloc.totalFrames
}

// TotalMemory returns the size of the managed memory window in bytes.
func (alloc *FrameAllocator) TotalMemory() uint64 {
	return uint64(alloc.totalFrames) * uint64(mm.FrameSize)
}

// FreeMemory returns the number of free bytes in the managed memory window.
func (alloc *FrameAllocator) FreeMemory() uint64 {
	return uint64(alloc.FreeCount()) * uint64(mm.FrameSize)
}

// UsagePercent returns the percentage (0-100) of managed frames that are
// currently allocated.
func (alloc *FrameAllocator) UsagePercent() uint32 {
	if alloc.totalFrames == 0 {
		return 0
	}

	return alloc.allocatedFrames * 100 / alloc.totalFrames
}

// IsAllocated returns true if the frame containing addr is allocated.
// Addresses outside the managed region report as free.
func (alloc *FrameAllocator) IsAllocated(addr mm.PhysicalAddress) bool {
	index, err := alloc.frameIndex(addr.AlignDown(mm.FrameSize))
	if err != nil {
		return false
	}

	return alloc.bitmap.IsSet(index)
}

// frameAddress returns the physical address of the frame with the given
// bitmap index.
func (alloc *FrameAllocator) frameAddress(index uint32) mm.PhysicalAddress {
	return alloc.startAddress.Offset(uintptr(index) * mm.FrameSize)
}

// frameIndex maps a frame-aligned physical address inside the managed
// region to its bitmap index.
func (alloc *FrameAllocator) frameIndex(addr mm.PhysicalAddress) (uint32, *kernel.Error) {
	if !addr.IsAligned(mm.FrameSize) || addr < alloc.startAddress {
		return 0, ErrInvalidAddress
	}

	index := uint64(addr-alloc.startAddress) / uint64(mm.FrameSize)
	if index >= uint64(alloc.totalFrames) {
		return 0, ErrInvalidAddress
	}

	return uint32(index), nil
}
