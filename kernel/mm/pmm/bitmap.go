// Package pmm implements the kernel's physical memory manager: a bitmap
// backed, first-fit frame allocator.
package pmm

import "math/bits"

// bitmapWordBits is the number of frames tracked by one bitmap word.
const bitmapWordBits = 64

// Bitmap tracks frame reservations for a contiguous run of frames. Bit i set
// means that frame i is allocated. The bitmap is owned exclusively by the
// frame allocator for its lifetime.
type Bitmap struct {
	words []uint64
	nbits uint32
}

// BitmapWordsFor returns the number of uint64 words required to track nbits
// frames.
func BitmapWordsFor(nbits uint32) int {
	return int((nbits + bitmapWordBits - 1) / bitmapWordBits)
}

// NewBitmap overlays a bitmap of nbits bits on the supplied storage. The
// storage contents are cleared so all tracked frames start out free. The
// caller must ensure that the storage can hold nbits bits.
func NewBitmap(storage []uint64, nbits uint32) Bitmap {
	for i := range storage {
		storage[i] = 0
	}

	return Bitmap{
		words: storage[:BitmapWordsFor(nbits)],
		nbits: nbits,
	}
}

// Set marks frame index as allocated. Out of range indices are ignored.
func (b *Bitmap) Set(index uint32) {
	if index < b.nbits {
		b.words[index/bitmapWordBits] |= 1 << (index % bitmapWordBits)
	}
}

// Clear marks frame index as free. Out of range indices are ignored.
func (b *Bitmap) Clear(index uint32) {
	if index < b.nbits {
		b.words[index/bitmapWordBits] &^= 1 << (index % bitmapWordBits)
	}
}

// IsSet returns true if frame index is allocated. Out of range indices
// report as free.
func (b *Bitmap) IsSet(index uint32) bool {
	if index >= b.nbits {
		return false
	}

	return b.words[index/bitmapWordBits]&(1<<(index%bitmapWordBits)) != 0
}

// FirstClear scans for the lowest free frame index. Fully allocated words
// are skipped without examining individual bits.
func (b *Bitmap) FirstClear() (uint32, bool) {
	for wordIndex, word := range b.words {
		if word == ^uint64(0) {
			continue
		}

		index := uint32(wordIndex)*bitmapWordBits + uint32(bits.TrailingZeros64(^word))
		if index >= b.nbits {
			return 0, false
		}

		return index, true
	}

	return 0, false
}

// ConsecutiveClear scans for the lowest run of count consecutive free frame
// indices and returns the index of the first frame in the run.
func (b *Bitmap) ConsecutiveClear(count uint32) (uint32, bool) {
	if count == 0 || count > b.nbits {
		return 0, false
	}

	var (
		runStart  uint32
		runLength uint32
	)

	for index := uint32(0); index < b.nbits; index++ {
		if b.IsSet(index) {
			runLength = 0
			continue
		}

		if runLength == 0 {
			runStart = index
		}

		if runLength++; runLength == count {
			return runStart, true
		}
	}

	return 0, false
}

// AllocatedCount returns the number of allocated frames.
func (b *Bitmap) AllocatedCount() uint32 {
	var count uint32
	for _, word := range b.words {
		count += uint32(bits.OnesCount64(word))
	}

	return count
}

// FreeCount returns the number of free frames.
func (b *Bitmap) FreeCount() uint32 {
	return b.nbits - b.AllocatedCount()
}

// Size returns the total number of frames tracked by the bitmap.
func (b *Bitmap) Size() uint32 {
	return b.nbits
}
