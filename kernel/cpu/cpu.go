// Package cpu exports the small set of processor operations that the memory
// manager depends on. The actual implementations are architecture-specific
// and are installed by the platform bootstrap code via the Set* registration
// functions. The defaults are safe no-ops which allows the kernel packages to
// be linked and tested in user-mode where the privileged instructions would
// fault.
package cpu

var (
	flushTLBEntryFn = func(virtAddr uintptr) {}
	flushTLBFn      = func() {}
	haltFn          = func() {
		// Spin until the platform installs a real halt implementation.
		for {
		}
	}
)

// FlushTLBEntry invalidates the cached translation for a single virtual
// address (invlpg on amd64).
func FlushTLBEntry(virtAddr uintptr) { flushTLBEntryFn(virtAddr) }

// FlushTLB invalidates all cached translations (a CR3 reload on amd64).
func FlushTLB() { flushTLBFn() }

// Halt stops instruction execution.
func Halt() { haltFn() }

// SetFlushTLBEntry registers the architecture-specific single-entry TLB
// invalidation routine.
func SetFlushTLBEntry(fn func(virtAddr uintptr)) { flushTLBEntryFn = fn }

// SetFlushTLB registers the architecture-specific full TLB invalidation
// routine.
func SetFlushTLB(fn func()) { flushTLBFn = fn }

// SetHalt registers the architecture-specific halt routine.
func SetHalt(fn func()) { haltFn = fn }
