// Package kmain hosts the kernel entry point invoked by the platform
// bootstrap code and the ordered bring-up of the memory manager.
package kmain

import (
	"helios/kernel"
	"helios/kernel/hal/bootinfo"
	"helios/kernel/kfmt"
	"helios/kernel/mm"
	"helios/kernel/mm/heap"
	"helios/kernel/mm/pmm"
	"helios/kernel/mm/vmm"
)

const (
	// maxTrackedFrames caps the physical memory window the static bitmap
	// storage can describe (4Gb at 4Kb frames). Memory beyond the cap is
	// left unmanaged.
	maxTrackedFrames = 1 << 20

	// kernelHeapPages is the size of the contiguous frame run reserved
	// for the kernel heap during bring-up.
	kernelHeapPages = 1024
)

var (
	errKmainReturned    = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errNoBootDescriptor = &kernel.Error{Module: "kmain", Message: "no boot memory descriptor registered"}

	// bitmapStorage backs the frame allocator bitmap. The Go allocator is
	// not functional before the heap is up, so the storage must be static.
	bitmapStorage [maxTrackedFrames / 64]uint64

	frameAllocator pmm.FrameAllocator
	kernelMapper   *vmm.Mapper

	// panicFn is mocked by tests.
	panicFn = kfmt.Panic
)

// Kmain is the only Go symbol visible to the platform bootstrap code. It is
// invoked after the bootstrap assembly has set up a minimal stack, built the
// top-level page table and registered the boot memory descriptor.
//
// Kmain is not expected to return.
//
//go:noinline
func Kmain() {
	desc := bootinfo.Get()
	if desc == nil {
		panicFn(errNoBootDescriptor)
		return
	}

	if err := initMemory(desc); err != nil {
		panicFn(err)
		return
	}

	panicFn(errKmainReturned)
}

// initMemory performs the ordered bring-up of the memory manager: frame
// allocator over the boot memory window, page mapper rooted at the bootstrap
// table, identity mappings for the kernel image and the heap window, and
// finally the kernel heap itself.
func initMemory(desc *bootinfo.MemoryDescriptor) *kernel.Error {
	physBase := mm.PhysicalAddress(desc.PhysBase)

	physSize := desc.PhysSize
	if physSize/uint64(mm.FrameSize) > maxTrackedFrames {
		physSize = maxTrackedFrames * uint64(mm.FrameSize)
		kfmt.Printf("[kmain] boot memory window exceeds %d frames; managing the first %d Mb only\n",
			maxTrackedFrames, physSize/mm.Mb)
	}

	if err := frameAllocator.Init(physBase, physSize, bitmapStorage[:]); err != nil {
		return err
	}
	kfmt.Printf("[kmain] managing %d frames at 0x%x (%d Mb)\n",
		frameAllocator.TotalFrames(), uintptr(physBase), frameAllocator.TotalMemory()/mm.Mb)

	// The kernel image and the bootstrap table occupy frames inside the
	// managed window; reserve them before any allocation can hand them out.
	imageStart, imageEnd, err := reserveKernelImage(desc)
	if err != nil {
		return err
	}
	if err = reserveBootstrapTable(desc); err != nil {
		return err
	}

	kernelMapper, err = vmm.NewMapper(mm.PhysicalAddress(desc.BootstrapTable), &frameAllocator)
	if err != nil {
		return err
	}

	if imageEnd > imageStart {
		if err = kernelMapper.IdentityMapRange(imageStart, uintptr(imageEnd-imageStart), vmm.FlagPresent|vmm.FlagRW); err != nil {
			return err
		}
		kfmt.Printf("[kmain] identity-mapped kernel image: 0x%x - 0x%x\n", uintptr(imageStart), uintptr(imageEnd))
	}

	heapAddr, err := frameAllocator.AllocFrames(kernelHeapPages)
	if err != nil {
		return err
	}
	if err = kernelMapper.IdentityMapRange(heapAddr, kernelHeapPages*mm.PageSize, vmm.FlagPresent|vmm.FlagRW|vmm.FlagNoExecute); err != nil {
		return err
	}

	if err = heap.Init(uintptr(heapAddr), kernelHeapPages*mm.PageSize, heap.FreeListStrategy); err != nil {
		return err
	}
	kfmt.Printf("[kmain] kernel heap: 0x%x - 0x%x (%d Kb)\n",
		uintptr(heapAddr), uintptr(heapAddr)+kernelHeapPages*mm.PageSize, kernelHeapPages*mm.PageSize/uintptr(mm.Kb))

	return nil
}

// reserveKernelImage marks the frames covered by the loaded kernel image as
// allocated and returns the frame-aligned image bounds clipped to the
// managed window. A descriptor without image bounds yields an empty range.
func reserveKernelImage(desc *bootinfo.MemoryDescriptor) (start, end mm.PhysicalAddress, err *kernel.Error) {
	start = mm.PhysicalAddress(desc.KernelStart).AlignDown(mm.FrameSize)
	end = mm.PhysicalAddress(desc.KernelEnd).AlignUp(mm.FrameSize)

	windowStart := mm.PhysicalAddress(desc.PhysBase)
	windowEnd := windowStart.Offset(uintptr(frameAllocator.TotalMemory()))
	if start < windowStart {
		start = windowStart
	}
	if end > windowEnd {
		end = windowEnd
	}
	if end <= start {
		return 0, 0, nil
	}

	count := uint32((end - start) / mm.PhysicalAddress(mm.FrameSize))
	if err = frameAllocator.ReserveRange(start, count); err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

// reserveBootstrapTable marks the frame holding the bootstrap top-level page
// table as allocated unless it lies outside the managed window or inside the
// already reserved kernel image.
func reserveBootstrapTable(desc *bootinfo.MemoryDescriptor) *kernel.Error {
	tableAddr := mm.PhysicalAddress(desc.BootstrapTable)
	if frameAllocator.IsAllocated(tableAddr) {
		return nil
	}

	windowStart := mm.PhysicalAddress(desc.PhysBase)
	windowEnd := windowStart.Offset(uintptr(frameAllocator.TotalMemory()))
	if tableAddr < windowStart || tableAddr >= windowEnd {
		return nil
	}

	return frameAllocator.ReserveRange(tableAddr, 1)
}
