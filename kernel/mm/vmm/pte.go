// Package vmm implements the kernel's virtual memory manager: the 4-level
// page table hierarchy and the mapper that installs, removes and resolves
// virtual-to-physical translations.
package vmm

import "helios/kernel/mm"

// EntryFlag describes a flag that can be applied to a page table entry.
type EntryFlag uint64

const (
	// FlagPresent marks the entry as installed; if it is clear the
	// remaining entry bits carry no meaning and must be disregarded.
	FlagPresent EntryFlag = 1 << 0

	// FlagRW marks the mapped page as writable.
	FlagRW EntryFlag = 1 << 1

	// FlagUserAccessible allows user-mode accesses to the mapped page.
	FlagUserAccessible EntryFlag = 1 << 2

	// FlagWriteThrough enables write-through caching for the mapped page.
	FlagWriteThrough EntryFlag = 1 << 3

	// FlagNoCache disables caching for the mapped page.
	FlagNoCache EntryFlag = 1 << 4

	// FlagAccessed is set by the CPU when the mapped page is accessed.
	FlagAccessed EntryFlag = 1 << 5

	// FlagDirty is set by the CPU when the mapped page is written to.
	FlagDirty EntryFlag = 1 << 6

	// FlagHugePage marks a non-leaf entry as mapping a huge page instead
	// of pointing to the next table level.
	FlagHugePage EntryFlag = 1 << 7

	// FlagGlobal excludes the translation from full TLB flushes caused by
	// root table switches.
	FlagGlobal EntryFlag = 1 << 8

	// FlagNoExecute prevents instruction fetches from the mapped page.
	FlagNoExecute EntryFlag = 1 << 63
)

// ptePhysPageMask selects the physical frame address bits of an entry
// (bits 12-51); the remaining bits hold flags and OS-reserved state.
const ptePhysPageMask = uint64(0x000ffffffffff000)

// pageTableEntry describes an entry in one of the page table levels. Each
// entry packs a frame-aligned physical address together with a set of
// EntryFlag bits.
type pageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags EntryFlag) bool {
	return uint64(pte)&uint64(flags) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags EntryFlag) bool {
	return uint64(pte)&uint64(flags) != 0
}

// SetFlags sets the input list of flags on the page table entry.
func (pte *pageTableEntry) SetFlags(flags EntryFlag) {
	*pte = pageTableEntry(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags EntryFlag) {
	*pte = pageTableEntry(uint64(*pte) &^ uint64(flags))
}

// Address returns the physical frame address that this entry points to.
func (pte pageTableEntry) Address() mm.PhysicalAddress {
	return mm.PhysicalAddress(uint64(pte) & ptePhysPageMask)
}

// SetAddress updates the entry to point to the given frame-aligned physical
// address, leaving the flag bits untouched.
func (pte *pageTableEntry) SetAddress(addr mm.PhysicalAddress) {
	*pte = pageTableEntry(uint64(*pte)&^ptePhysPageMask | uint64(addr)&ptePhysPageMask)
}
