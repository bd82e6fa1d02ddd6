package vmm

import (
	"helios/kernel"
	"helios/kernel/mm"
	"helios/kernel/mm/pmm"
)

var (
	// ErrInvalidAddress is returned when an operation receives an
	// address that is not page-aligned or, for Unmap, does not resolve
	// to an installed mapping. The check happens before any side effect
	// is applied.
	ErrInvalidAddress = &kernel.Error{Module: "vmm", Message: "address is not page-aligned or not mapped"}

	// ErrPageAlreadyMapped is returned by Map when the leaf entry for
	// the target page is already present.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual page is already mapped"}

	// ErrTableCreationFailed is returned when a frame for a missing
	// intermediate page table could not be allocated. Mappings that
	// existed before the failed call are left untouched; tables created
	// earlier during the same walk remain allocated but empty.
	ErrTableCreationFailed = &kernel.Error{Module: "vmm", Message: "failed to allocate frame for new page table"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// Mapper builds and walks the page table hierarchy rooted at a single
// top-level table. Missing intermediate tables are allocated on demand from
// the borrowed frame allocator; once created, a table is owned by its parent
// entry for the lifetime of the kernel (empty intermediate tables are never
// reclaimed).
type Mapper struct {
	root   mm.PhysicalAddress
	frames *pmm.FrameAllocator
}

// NewMapper returns a Mapper rooted at the pre-allocated, zeroed top-level
// table frame at root. New table levels are allocated via frames.
func NewMapper(root mm.PhysicalAddress, frames *pmm.FrameAllocator) (*Mapper, *kernel.Error) {
	if !root.IsAligned(mm.FrameSize) {
		return nil, ErrInvalidAddress
	}

	return &Mapper{root: root, frames: frames}, nil
}

// RootAddress returns the physical address of the top-level table.
func (m *Mapper) RootAddress() mm.PhysicalAddress {
	return m.root
}

// Map installs a translation from the virtual page at virtAddr to the
// physical frame at physAddr, creating and zeroing any missing intermediate
// tables. It fails with ErrInvalidAddress if either address is not
// page-aligned, ErrPageAlreadyMapped if the leaf entry is already present
// and ErrTableCreationFailed if a new table level could not be allocated.
// The translation cache entry for the page is invalidated on success.
func (m *Mapper) Map(virtAddr mm.VirtualAddress, physAddr mm.PhysicalAddress, flags EntryFlag) *kernel.Error {
	return m.mapPage(virtAddr, physAddr, flags, true)
}

func (m *Mapper) mapPage(virtAddr mm.VirtualAddress, physAddr mm.PhysicalAddress, flags EntryFlag, flushEntry bool) *kernel.Error {
	if !virtAddr.IsAligned(mm.PageSize) || !physAddr.IsAligned(mm.FrameSize) {
		return ErrInvalidAddress
	}

	table := tablePtrFn(m.root)
	for level := uint8(0); level < mm.PageLevels-1; level++ {
		pte := &table.entries[virtAddr.TableIndex(level)]

		if pte.HasFlags(FlagHugePage) {
			return errNoHugePageSupport
		}

		// Next table does not exist yet; allocate a frame for it,
		// hook it up and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			tableAddr, err := m.frames.AllocFrame()
			if err != nil {
				return ErrTableCreationFailed
			}

			*pte = 0
			pte.SetAddress(tableAddr)
			pte.SetFlags(FlagPresent | FlagRW)
			tablePtrFn(tableAddr).zero()
		}

		table = tablePtrFn(pte.Address())
	}

	pte := &table.entries[virtAddr.TableIndex(mm.PageLevels-1)]
	if pte.HasFlags(FlagPresent) {
		return ErrPageAlreadyMapped
	}

	*pte = 0
	pte.SetAddress(physAddr)
	pte.SetFlags(flags)

	if flushEntry {
		m.FlushEntry(virtAddr)
	}

	return nil
}

// Unmap removes the translation for the virtual page at virtAddr and
// returns the physical frame address it was mapped to. It fails with
// ErrInvalidAddress if virtAddr is not page-aligned or no mapping is
// installed. Intermediate tables that become empty are left in place. The
// translation cache entry for the page is invalidated on success.
func (m *Mapper) Unmap(virtAddr mm.VirtualAddress) (mm.PhysicalAddress, *kernel.Error) {
	if !virtAddr.IsAligned(mm.PageSize) {
		return 0, ErrInvalidAddress
	}

	pte, ok := m.leafEntry(virtAddr)
	if !ok {
		return 0, ErrInvalidAddress
	}

	physAddr := pte.Address()
	*pte = 0
	m.FlushEntry(virtAddr)

	return physAddr, nil
}

// Translate walks the hierarchy read-only and returns the physical address
// that virtAddr maps to, including the in-page offset. The boolean return
// reports absence: it is false if any level on the walk is not present.
// Translate never allocates.
func (m *Mapper) Translate(virtAddr mm.VirtualAddress) (mm.PhysicalAddress, bool) {
	pte, ok := m.leafEntry(virtAddr)
	if !ok {
		return 0, false
	}

	return pte.Address().Offset(virtAddr.PageOffset()), true
}

// IdentityMapRange maps the physical region [physStart, physStart+length)
// so that each virtual address equals its physical counterpart. physStart
// must be frame-aligned; length is rounded up to the next frame boundary.
// The mapping is installed page by page and inherits the failure modes of
// Map. When the range spans more than flushAllThreshold pages a single full
// translation cache invalidation replaces the per-page flushes.
func (m *Mapper) IdentityMapRange(physStart mm.PhysicalAddress, length uintptr, flags EntryFlag) *kernel.Error {
	if !physStart.IsAligned(mm.FrameSize) {
		return ErrInvalidAddress
	}

	pageCount := (length + mm.PageSize - 1) / mm.PageSize
	flushPerPage := pageCount <= flushAllThreshold

	for page := uintptr(0); page < pageCount; page++ {
		addr := physStart.Offset(page * mm.PageSize)
		if err := m.mapPage(mm.VirtualAddress(addr), addr, flags, flushPerPage); err != nil {
			return err
		}
	}

	if !flushPerPage {
		m.FlushAll()
	}

	return nil
}

// leafEntry walks the hierarchy for virtAddr and returns the leaf entry, or
// false if any level on the walk (the leaf included) is not present.
func (m *Mapper) leafEntry(virtAddr mm.VirtualAddress) (*pageTableEntry, bool) {
	table := tablePtrFn(m.root)
	for level := uint8(0); level < mm.PageLevels-1; level++ {
		pte := &table.entries[virtAddr.TableIndex(level)]
		if !pte.HasFlags(FlagPresent) || pte.HasFlags(FlagHugePage) {
			return nil, false
		}

		table = tablePtrFn(pte.Address())
	}

	pte := &table.entries[virtAddr.TableIndex(mm.PageLevels-1)]
	if !pte.HasFlags(FlagPresent) {
		return nil, false
	}

	return pte, true
}
