package kernel

import "testing"

func TestRegionAllocatorFirstFit(t *testing.T) {
	a := NewRegionAllocator(101)

	x, err := a.Allocate(1, 40)
	if err != nil {
		t.Fatalf("Allocate(40) err = %v", err)
	}
	y, err := a.Allocate(1, 40)
	if err != nil {
		t.Fatalf("Allocate(40) err = %v", err)
	}
	if x == 0 || y != x+40 {
		t.Fatalf("addresses = %#x, %#x, want non-zero and contiguous", x, y)
	}

	if _, err := a.Allocate(2, 40); KindOf(err) != KindOutOfMemory {
		t.Fatalf("Allocate() when full kind = %v, want %v", KindOf(err), KindOutOfMemory)
	}

	if err := a.Deallocate(1, x); err != nil {
		t.Fatalf("Deallocate() err = %v", err)
	}
	z, err := a.Allocate(2, 30)
	if err != nil {
		t.Fatalf("Allocate(30) after free err = %v", err)
	}
	if z != x {
		t.Fatalf("Allocate(30) = %#x, want reused %#x", z, x)
	}
}

func TestRegionAllocatorOwnership(t *testing.T) {
	a := NewRegionAllocator(64)
	addr, _ := a.Allocate(1, 8)

	if err := a.Deallocate(2, addr); KindOf(err) != KindPermissionDenied {
		t.Fatalf("Deallocate() by other pid kind = %v, want %v", KindOf(err), KindPermissionDenied)
	}
	if err := a.Deallocate(1, addr+1); !IsNotFound(err) {
		t.Fatalf("Deallocate() unknown address err = %v, want not found", err)
	}
	if _, err := a.Allocate(1, 0); KindOf(err) != KindInvalidArgument {
		t.Fatalf("Allocate(0) kind = %v, want %v", KindOf(err), KindInvalidArgument)
	}
}

func TestRegionAllocatorReleaseCoalesces(t *testing.T) {
	a := NewRegionAllocator(65)
	total := a.Available()

	for i := 0; i < 4; i++ {
		if _, err := a.Allocate(ProcessID(1+i%2), 16); err != nil {
			t.Fatalf("Allocate() err = %v", err)
		}
	}
	if a.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", a.Available())
	}

	a.Release(1)
	a.Release(2)
	if a.Available() != total {
		t.Fatalf("Available() after release = %d, want %d", a.Available(), total)
	}
	if _, err := a.Allocate(3, total); err != nil {
		t.Fatalf("Allocate(all) after coalescing err = %v", err)
	}
}
