// Package bootinfo provides access to the memory descriptor that the
// platform bootstrap code hands over to the kernel. The descriptor is the
// only piece of boot-time information the memory manager consumes.
package bootinfo

// MemoryDescriptor describes the physical memory window available to the
// kernel together with the location of the bootstrap top-level page table.
// All addresses are physical and must be frame-aligned.
type MemoryDescriptor struct {
	// PhysBase is the physical address where frame 0 of the managed
	// memory window begins.
	PhysBase uintptr

	// PhysSize is the size of the managed memory window in bytes.
	PhysSize uint64

	// BootstrapTable points to the pre-allocated, zeroed frame that
	// serves as the top-level page table for the kernel address space.
	BootstrapTable uintptr

	// KernelStart and KernelEnd delimit the loaded kernel image. The
	// range is identity-mapped during memory manager initialization.
	KernelStart, KernelEnd uintptr
}

var activeDescriptor *MemoryDescriptor

// Set registers the memory descriptor supplied by the platform bootstrap
// code. It must be invoked before the memory manager is initialized.
func Set(desc *MemoryDescriptor) {
	activeDescriptor = desc
}

// Get returns the registered memory descriptor or nil if the platform has
// not provided one yet.
func Get() *MemoryDescriptor {
	return activeDescriptor
}
