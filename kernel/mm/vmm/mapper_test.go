package vmm

import (
	"runtime"
	"testing"
	"unsafe"

	"helios/kernel/mm"
	"helios/kernel/mm/pmm"
)

// newTestMapper sets up a mapper whose frame allocator manages a fake
// physical memory window carved out of a page-aligned Go slice. The window
// plays the role of identity-mapped physical memory: frame addresses handed
// out by the allocator can be dereferenced directly, exactly as the mapper
// expects.
func newTestMapper(t *testing.T, frameCount uint32) (*Mapper, *pmm.FrameAllocator) {
	t.Helper()

	buf := make([]byte, (uintptr(frameCount)+1)*mm.PageSize)
	base := mm.PhysicalAddress(uintptr(unsafe.Pointer(&buf[0]))).AlignUp(mm.PageSize)

	var alloc pmm.FrameAllocator
	storage := make([]uint64, pmm.BitmapWordsFor(frameCount))
	if err := alloc.Init(base, uint64(frameCount)*uint64(mm.FrameSize), storage); err != nil {
		t.Fatalf("frame allocator init failed: %v", err)
	}

	rootAddr, err := alloc.AllocFrame()
	if err != nil {
		t.Fatalf("root table allocation failed: %v", err)
	}

	mapper, err := NewMapper(rootAddr, &alloc)
	if err != nil {
		t.Fatalf("mapper construction failed: %v", err)
	}

	t.Cleanup(func() { runtime.KeepAlive(buf) })

	return mapper, &alloc
}

func TestMapTranslateUnmapRoundTrip(t *testing.T) {
	mapper, _ := newTestMapper(t, 16)

	virtAddr := mm.VirtualAddress(0x400000)
	physAddr := mm.PhysicalAddress(0x200000)

	if err := mapper.Map(virtAddr, physAddr, FlagPresent|FlagRW); err != nil {
		t.Fatalf("map failed: %v", err)
	}

	if got, ok := mapper.Translate(virtAddr); !ok || got != physAddr {
		t.Fatalf("expected translate to return 0x%x; got 0x%x, %t", uintptr(physAddr), uintptr(got), ok)
	}

	// Translating an address inside the page must include the offset
	if got, ok := mapper.Translate(virtAddr + 0x123); !ok || got != physAddr+0x123 {
		t.Fatalf("expected translate to include the page offset; got 0x%x, %t", uintptr(got), ok)
	}

	unmapped, err := mapper.Unmap(virtAddr)
	if err != nil || unmapped != physAddr {
		t.Fatalf("expected unmap to return 0x%x; got 0x%x, %v", uintptr(physAddr), uintptr(unmapped), err)
	}

	if _, ok := mapper.Translate(virtAddr); ok {
		t.Fatal("expected translate to report absence after unmap")
	}
}

func TestMapAlreadyMapped(t *testing.T) {
	mapper, _ := newTestMapper(t, 16)

	virtAddr := mm.VirtualAddress(0x400000)
	if err := mapper.Map(virtAddr, 0x200000, FlagPresent|FlagRW); err != nil {
		t.Fatalf("map failed: %v", err)
	}

	if err := mapper.Map(virtAddr, 0x201000, FlagPresent|FlagRW); err != ErrPageAlreadyMapped {
		t.Fatalf("expected remapping without unmap to fail with ErrPageAlreadyMapped; got %v", err)
	}

	// The original mapping must survive the failed attempt
	if got, ok := mapper.Translate(virtAddr); !ok || got != 0x200000 {
		t.Fatalf("expected the original mapping to be intact; got 0x%x, %t", uintptr(got), ok)
	}
}

func TestMapAlignmentValidation(t *testing.T) {
	mapper, alloc := newTestMapper(t, 16)

	allocatedBefore := alloc.AllocatedCount()

	specs := []struct {
		virtAddr mm.VirtualAddress
		physAddr mm.PhysicalAddress
	}{
		{0x400123, 0x200000}, // misaligned virtual address
		{0x400000, 0x200123}, // misaligned physical address
	}

	for specIndex, spec := range specs {
		if err := mapper.Map(spec.virtAddr, spec.physAddr, FlagPresent); err != ErrInvalidAddress {
			t.Errorf("[spec %d] expected ErrInvalidAddress; got %v", specIndex, err)
		}
	}

	// Validation failures must occur before any side effect
	if alloc.AllocatedCount() != allocatedBefore {
		t.Fatal("expected no table frames to be allocated for rejected mappings")
	}
	if got := tablePtrFn(mapper.RootAddress()).presentCount(); got != 0 {
		t.Fatalf("expected the root table to remain empty; found %d present entries", got)
	}
}

func TestUnmapValidation(t *testing.T) {
	mapper, _ := newTestMapper(t, 16)

	if _, err := mapper.Unmap(0x400123); err != ErrInvalidAddress {
		t.Errorf("expected unmapping a misaligned address to fail with ErrInvalidAddress; got %v", err)
	}

	if _, err := mapper.Unmap(0x400000); err != ErrInvalidAddress {
		t.Errorf("expected unmapping an absent mapping to fail with ErrInvalidAddress; got %v", err)
	}
}

func TestMapTableCreationFailure(t *testing.T) {
	// Root + the three intermediate tables for the first mapping leave
	// no spare frame for the tables the second mapping needs.
	mapper, alloc := newTestMapper(t, 4)

	firstVirt := mm.VirtualAddress(0x400000)
	if err := mapper.Map(firstVirt, 0x200000, FlagPresent|FlagRW); err != nil {
		t.Fatalf("map failed: %v", err)
	}

	// The distant address shares no tables with the first mapping, so
	// the walk must attempt (and fail) to create a new level.
	if err := mapper.Map(0xFFFF_8000_0000_0000, 0x300000, FlagPresent); err != ErrTableCreationFailed {
		t.Fatalf("expected ErrTableCreationFailed; got %v", err)
	}

	// Previously installed mappings are untouched by the failure
	if got, ok := mapper.Translate(firstVirt); !ok || got != 0x200000 {
		t.Fatalf("expected the earlier mapping to survive; got 0x%x, %t", uintptr(got), ok)
	}

	if alloc.FreeCount() != 0 {
		t.Fatalf("expected the allocator to be exhausted; got %d free frames", alloc.FreeCount())
	}
}

func TestIdentityMapRange(t *testing.T) {
	defer func(origFlushEntry func(uintptr), origFlush func()) {
		flushTLBEntryFn = origFlushEntry
		flushTLBFn = origFlush
	}(flushTLBEntryFn, flushTLBFn)

	var entryFlushes, fullFlushes int
	flushTLBEntryFn = func(uintptr) { entryFlushes++ }
	flushTLBFn = func() { fullFlushes++ }

	mapper, alloc := newTestMapper(t, 32)

	// Reserve a 8-frame region and identity-map it
	regionAddr, err := alloc.AllocFrames(8)
	if err != nil {
		t.Fatal(err)
	}

	if err := mapper.IdentityMapRange(regionAddr, 8*mm.PageSize, FlagPresent|FlagRW); err != nil {
		t.Fatalf("identity mapping failed: %v", err)
	}

	for page := uintptr(0); page < 8; page++ {
		addr := regionAddr.Offset(page * mm.PageSize)
		if got, ok := mapper.Translate(mm.VirtualAddress(addr)); !ok || got != addr {
			t.Fatalf("expected page %d to be identity-mapped; got 0x%x, %t", page, uintptr(got), ok)
		}
	}

	// A short range is flushed page by page
	if entryFlushes != 8 || fullFlushes != 0 {
		t.Fatalf("expected 8 per-page flushes and no full flush; got %d / %d", entryFlushes, fullFlushes)
	}

	if err := mapper.IdentityMapRange(regionAddr+0x123, mm.PageSize, FlagPresent); err != ErrInvalidAddress {
		t.Fatalf("expected a misaligned range start to fail with ErrInvalidAddress; got %v", err)
	}
}

func TestIdentityMapRangeBulkFlush(t *testing.T) {
	defer func(origFlushEntry func(uintptr), origFlush func()) {
		flushTLBEntryFn = origFlushEntry
		flushTLBFn = origFlush
	}(flushTLBEntryFn, flushTLBFn)

	var entryFlushes, fullFlushes int
	flushTLBEntryFn = func(uintptr) { entryFlushes++ }
	flushTLBFn = func() { fullFlushes++ }

	const regionPages = flushAllThreshold + 8
	mapper, alloc := newTestMapper(t, regionPages+16)

	regionAddr, err := alloc.AllocFrames(regionPages)
	if err != nil {
		t.Fatal(err)
	}

	if err := mapper.IdentityMapRange(regionAddr, regionPages*mm.PageSize, FlagPresent|FlagRW); err != nil {
		t.Fatalf("identity mapping failed: %v", err)
	}

	// Above the threshold a single full flush replaces per-page flushes
	if entryFlushes != 0 || fullFlushes != 1 {
		t.Fatalf("expected 0 per-page flushes and 1 full flush; got %d / %d", entryFlushes, fullFlushes)
	}

	if got, ok := mapper.Translate(mm.VirtualAddress(regionAddr)); !ok || got != regionAddr {
		t.Fatalf("expected the region start to be identity-mapped; got 0x%x, %t", uintptr(got), ok)
	}
}

func TestRangeLengthRounding(t *testing.T) {
	mapper, alloc := newTestMapper(t, 16)

	regionAddr, err := alloc.AllocFrames(2)
	if err != nil {
		t.Fatal(err)
	}

	// A length of one byte past a page boundary covers two pages
	if err := mapper.IdentityMapRange(regionAddr, mm.PageSize+1, FlagPresent); err != nil {
		t.Fatalf("identity mapping failed: %v", err)
	}

	if _, ok := mapper.Translate(mm.VirtualAddress(regionAddr.Offset(mm.PageSize))); !ok {
		t.Fatal("expected the partially covered trailing page to be mapped")
	}
}
