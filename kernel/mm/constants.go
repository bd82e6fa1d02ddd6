package mm

const (
	// PageShift is the number of address bits covered by the in-page
	// offset.
	PageShift = 12

	// PageSize is the size of a virtual page in bytes.
	PageSize = uintptr(1 << PageShift)

	// FrameSize is the size of a physical frame in bytes. Frames and
	// pages always share the same granularity.
	FrameSize = PageSize

	// PageLevels is the depth of the page table hierarchy.
	PageLevels = 4

	// TableEntryBits is the number of virtual address bits that index a
	// single page table level.
	TableEntryBits = 9

	// TableEntryCount is the number of entries in one page table.
	TableEntryCount = 1 << TableEntryBits
)

const (
	// Kb is the size of a kilobyte in bytes.
	Kb = uint64(1024)

	// Mb is the size of a megabyte in bytes.
	Mb = 1024 * Kb
)
