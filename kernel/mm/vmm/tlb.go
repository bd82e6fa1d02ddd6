package vmm

import (
	"helios/kernel/cpu"
	"helios/kernel/mm"
)

// flushAllThreshold is the number of changed translations above which one
// full TLB flush is cheaper than per-page invalidations. Bulk operations
// such as IdentityMapRange switch to a single full flush beyond it.
const flushAllThreshold = 64

var (
	// The following functions are used by tests to track TLB maintenance
	// and are automatically inlined by the compiler.
	flushTLBEntryFn = cpu.FlushTLBEntry
	flushTLBFn      = cpu.FlushTLB
)

// FlushEntry invalidates the cached translation for the page containing
// virtAddr. It must be invoked for every individually changed mapping.
func (m *Mapper) FlushEntry(virtAddr mm.VirtualAddress) {
	flushTLBEntryFn(uintptr(virtAddr))
}

// FlushAll invalidates every cached translation. It is meant for bulk
// changes (for example after swapping the root table) where per-page
// invalidation would be more expensive than rebuilding the cache.
func (m *Mapper) FlushAll() {
	flushTLBFn()
}
