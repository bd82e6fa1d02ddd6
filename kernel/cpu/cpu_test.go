package cpu

import "testing"

func TestRegistrationHooks(t *testing.T) {
	defer func(origFlushEntry func(uintptr), origFlush func(), origHalt func()) {
		flushTLBEntryFn = origFlushEntry
		flushTLBFn = origFlush
		haltFn = origHalt
	}(flushTLBEntryFn, flushTLBFn, haltFn)

	var (
		gotAddr    uintptr
		flushCalls int
		haltCalls  int
	)

	SetFlushTLBEntry(func(virtAddr uintptr) { gotAddr = virtAddr })
	SetFlushTLB(func() { flushCalls++ })
	SetHalt(func() { haltCalls++ })

	FlushTLBEntry(0xbadf00d000)
	FlushTLB()
	Halt()

	if exp := uintptr(0xbadf00d000); gotAddr != exp {
		t.Errorf("expected FlushTLBEntry to receive address 0x%x; got 0x%x", exp, gotAddr)
	}

	if flushCalls != 1 || haltCalls != 1 {
		t.Errorf("expected 1 call to each registered hook; got flush: %d, halt: %d", flushCalls, haltCalls)
	}
}
