package pmm

import "testing"

func TestBitmapSetClear(t *testing.T) {
	storage := make([]uint64, BitmapWordsFor(128))
	bitmap := NewBitmap(storage, 128)

	if bitmap.IsSet(0) || bitmap.IsSet(50) {
		t.Fatal("expected a fresh bitmap to have no set bits")
	}

	bitmap.Set(0)
	bitmap.Set(50)
	bitmap.Set(127)

	for _, index := range []uint32{0, 50, 127} {
		if !bitmap.IsSet(index) {
			t.Errorf("expected bit %d to be set", index)
		}
	}
	if bitmap.IsSet(1) {
		t.Error("expected bit 1 to be clear")
	}

	bitmap.Clear(50)
	if bitmap.IsSet(50) {
		t.Error("expected bit 50 to be clear after Clear")
	}

	// Out of range indices are ignored and report as free
	bitmap.Set(128)
	if bitmap.IsSet(128) {
		t.Error("expected out of range bit to report as free")
	}
}

func TestBitmapFirstClear(t *testing.T) {
	storage := make([]uint64, BitmapWordsFor(128))
	bitmap := NewBitmap(storage, 128)

	if index, ok := bitmap.FirstClear(); !ok || index != 0 {
		t.Fatalf("expected first clear bit to be 0; got %d, %t", index, ok)
	}

	for i := uint32(0); i < 10; i++ {
		bitmap.Set(i)
	}

	if index, ok := bitmap.FirstClear(); !ok || index != 10 {
		t.Fatalf("expected first clear bit to be 10; got %d, %t", index, ok)
	}

	// The scan must skip fully allocated words
	for i := uint32(0); i < 128; i++ {
		bitmap.Set(i)
	}

	if _, ok := bitmap.FirstClear(); ok {
		t.Fatal("expected FirstClear to fail on a fully allocated bitmap")
	}
}

func TestBitmapFirstClearIgnoresTailBits(t *testing.T) {
	// 70 bits leave 58 unused tail bits in the second word; they must
	// never be reported as allocatable frames.
	storage := make([]uint64, BitmapWordsFor(70))
	bitmap := NewBitmap(storage, 70)

	for i := uint32(0); i < 70; i++ {
		bitmap.Set(i)
	}

	if _, ok := bitmap.FirstClear(); ok {
		t.Fatal("expected FirstClear to fail once every tracked bit is set")
	}
}

func TestBitmapConsecutiveClear(t *testing.T) {
	storage := make([]uint64, BitmapWordsFor(128))
	bitmap := NewBitmap(storage, 128)

	for i := uint32(0); i < 10; i++ {
		bitmap.Set(i)
	}
	for i := uint32(15); i < 20; i++ {
		bitmap.Set(i)
	}

	specs := []struct {
		count    uint32
		expIndex uint32
		expOk    bool
	}{
		{4, 10, true},
		{5, 10, true},
		{6, 20, true},
		{108, 20, true},
		{109, 0, false},
		{0, 0, false},
		{129, 0, false},
	}

	for specIndex, spec := range specs {
		index, ok := bitmap.ConsecutiveClear(spec.count)
		if ok != spec.expOk || index != spec.expIndex {
			t.Errorf("[spec %d] expected (%d, %t); got (%d, %t)", specIndex, spec.expIndex, spec.expOk, index, ok)
		}
	}
}

func TestBitmapCounts(t *testing.T) {
	storage := make([]uint64, BitmapWordsFor(128))
	bitmap := NewBitmap(storage, 128)

	if bitmap.Size() != 128 || bitmap.FreeCount() != 128 || bitmap.AllocatedCount() != 0 {
		t.Fatal("expected a fresh bitmap to report all bits free")
	}

	for i := uint32(0); i < 10; i++ {
		bitmap.Set(i)
	}

	if free, used := bitmap.FreeCount(), bitmap.AllocatedCount(); free != 118 || used != 10 {
		t.Fatalf("expected 118 free / 10 allocated; got %d / %d", free, used)
	}

	if bitmap.FreeCount()+bitmap.AllocatedCount() != bitmap.Size() {
		t.Fatal("free + allocated must always equal the bitmap size")
	}
}
