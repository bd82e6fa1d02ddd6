package mm

import "testing"

func TestPhysicalAddressAlignment(t *testing.T) {
	addr := PhysicalAddress(0x1234)

	if got := addr.AlignDown(0x1000); got != 0x1000 {
		t.Errorf("expected AlignDown to return 0x1000; got 0x%x", uintptr(got))
	}

	if got := addr.AlignUp(0x1000); got != 0x2000 {
		t.Errorf("expected AlignUp to return 0x2000; got 0x%x", uintptr(got))
	}

	if PhysicalAddress(0x2000).AlignUp(0x1000) != 0x2000 {
		t.Error("expected AlignUp of an aligned address to be a no-op")
	}

	if !PhysicalAddress(0x3000).IsAligned(0x1000) || PhysicalAddress(0x3001).IsAligned(0x1000) {
		t.Error("IsAligned returned the wrong answer")
	}

	if got := addr.Offset(0x10); got != 0x1244 {
		t.Errorf("expected Offset to return 0x1244; got 0x%x", uintptr(got))
	}
}

func TestVirtualAddressTableIndices(t *testing.T) {
	// level indices: 256, 0, 2, 1 with in-page offset 0x234
	addr := VirtualAddress(0xFFFF_8000_0040_1234)

	expIndices := []uintptr{256, 0, 2, 1}
	for level := uint8(0); level < PageLevels; level++ {
		if got := addr.TableIndex(level); got != expIndices[level] {
			t.Errorf("expected index at level %d to be %d; got %d", level, expIndices[level], got)
		}
	}

	if got := addr.PageOffset(); got != 0x234 {
		t.Errorf("expected page offset 0x234; got 0x%x", got)
	}
}

func TestFrameAndPageConversions(t *testing.T) {
	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame to be flagged as invalid")
	}

	frame := FrameFromAddress(PhysicalAddress(0x200000))
	if !frame.Valid() || frame.Address() != 0x200000 {
		t.Errorf("expected frame at 0x200000; got frame %d at 0x%x", uintptr(frame), uintptr(frame.Address()))
	}

	// Unaligned addresses round down to the containing frame
	if got := FrameFromAddress(PhysicalAddress(0x200fff)); got != frame {
		t.Errorf("expected unaligned address to map to frame %d; got %d", uintptr(frame), uintptr(got))
	}

	page := PageFromAddress(VirtualAddress(0x400000))
	if page.Address() != 0x400000 {
		t.Errorf("expected page address 0x400000; got 0x%x", uintptr(page.Address()))
	}
}
