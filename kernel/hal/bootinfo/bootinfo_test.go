package bootinfo

import "testing"

func TestDescriptorRegistration(t *testing.T) {
	defer Set(nil)

	Set(nil)
	if Get() != nil {
		t.Fatal("expected Get to return nil before a descriptor is registered")
	}

	desc := &MemoryDescriptor{
		PhysBase:       0x100000,
		PhysSize:       32 << 20,
		BootstrapTable: 0x100000,
	}
	Set(desc)

	if got := Get(); got != desc {
		t.Fatalf("expected Get to return the registered descriptor; got %v", got)
	}
}
