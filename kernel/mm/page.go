package mm

import "math"

// Frame describes a physical memory frame index.
type Frame uintptr

// InvalidFrame is returned by frame allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address where this frame begins.
func (f Frame) Address() PhysicalAddress {
	return PhysicalAddress(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Addresses that are not frame-aligned are rounded down to the
// frame that contains them.
func FrameFromAddress(physAddr PhysicalAddress) Frame {
	return Frame(uintptr(physAddr) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address where this page begins.
func (p Page) Address() VirtualAddress {
	return VirtualAddress(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Addresses that are not page-aligned are rounded down to the page that
// contains them.
func PageFromAddress(virtAddr VirtualAddress) Page {
	return Page(uintptr(virtAddr) >> PageShift)
}
