package vmm

import (
	"unsafe"

	"helios/kernel"
	"helios/kernel/mm"
)

// pageTable describes one level of the translation hierarchy: a frame-sized,
// frame-aligned array of entries. Non-leaf entries exclusively own the table
// their address bits point to; tables are created lazily the first time a
// mapping needs them and are never reclaimed.
type pageTable struct {
	entries [mm.TableEntryCount]pageTableEntry
}

// tablePtrFn overlays a pageTable on the memory at the supplied physical
// address. The managed memory window is identity-mapped so physical
// addresses can be dereferenced directly; tests override this function to
// redirect table accesses into fake memory windows.
var tablePtrFn = func(addr mm.PhysicalAddress) *pageTable {
	return (*pageTable)(unsafe.Pointer(uintptr(addr)))
}

// zero clears every entry in the table.
func (pt *pageTable) zero() {
	kernel.Memset(uintptr(unsafe.Pointer(pt)), 0, mm.PageSize)
}

// presentCount returns the number of present entries in the table.
func (pt *pageTable) presentCount() int {
	var count int
	for i := range pt.entries {
		if pt.entries[i].HasFlags(FlagPresent) {
			count++
		}
	}

	return count
}
