package mm

// PhysicalAddress describes an offset into physical memory. Addresses that
// are handed to the frame allocator or page mapper as frame bases must be
// frame-aligned.
type PhysicalAddress uintptr

// AlignDown rounds the address down to the closest multiple of align. The
// alignment must be a power of two.
func (addr PhysicalAddress) AlignDown(align uintptr) PhysicalAddress {
	return PhysicalAddress(uintptr(addr) &^ (align - 1))
}

// AlignUp rounds the address up to the closest multiple of align. The
// alignment must be a power of two.
func (addr PhysicalAddress) AlignUp(align uintptr) PhysicalAddress {
	return PhysicalAddress((uintptr(addr) + align - 1) &^ (align - 1))
}

// IsAligned returns true if the address is a multiple of align.
func (addr PhysicalAddress) IsAligned(align uintptr) bool {
	return uintptr(addr)&(align-1) == 0
}

// Offset returns the address shifted forward by off bytes.
func (addr PhysicalAddress) Offset(off uintptr) PhysicalAddress {
	return addr + PhysicalAddress(off)
}

// VirtualAddress describes an address in the kernel's virtual address space.
// The low PageShift bits select a byte within a page while each successive
// TableEntryBits slice above them indexes one page table level.
type VirtualAddress uintptr

// AlignDown rounds the address down to the closest multiple of align. The
// alignment must be a power of two.
func (addr VirtualAddress) AlignDown(align uintptr) VirtualAddress {
	return VirtualAddress(uintptr(addr) &^ (align - 1))
}

// AlignUp rounds the address up to the closest multiple of align. The
// alignment must be a power of two.
func (addr VirtualAddress) AlignUp(align uintptr) VirtualAddress {
	return VirtualAddress((uintptr(addr) + align - 1) &^ (align - 1))
}

// IsAligned returns true if the address is a multiple of align.
func (addr VirtualAddress) IsAligned(align uintptr) bool {
	return uintptr(addr)&(align-1) == 0
}

// TableIndex extracts the page table index for the requested level. Level 0
// corresponds to the top-most (root) table and level PageLevels-1 to the leaf
// table.
func (addr VirtualAddress) TableIndex(level uint8) uintptr {
	shift := PageShift + TableEntryBits*(PageLevels-1-uintptr(level))
	return (uintptr(addr) >> shift) & (TableEntryCount - 1)
}

// PageOffset extracts the in-page byte offset encoded in the address.
func (addr VirtualAddress) PageOffset() uintptr {
	return uintptr(addr) & (PageSize - 1)
}
