package kernel

import (
	"fmt"
	"sort"
)

// Address is an offset into the kernel's managed arena.
type Address uint64

// MemoryRegion is one allocation owned by a process.
type MemoryRegion struct {
	Start   Address
	Size    uint64
	Process ProcessID
}

// MemoryManager hands out memory to processes.
type MemoryManager interface {
	Allocate(pid ProcessID, size uint64) (Address, error)
	Deallocate(pid ProcessID, addr Address) error
	// Release frees every region owned by pid.
	Release(pid ProcessID)
}

type span struct {
	start Address
	size  uint64
}

// RegionAllocator is a first-fit allocator over a fixed-size arena.
//
// Address 0 is never handed out so that a zero Address means "none".
// It is not safe for concurrent use.
type RegionAllocator struct {
	size    uint64
	free    []span // sorted by start, coalesced
	regions map[Address]MemoryRegion
}

// NewRegionAllocator manages an arena of size bytes.
func NewRegionAllocator(size uint64) *RegionAllocator {
	a := &RegionAllocator{
		size:    size,
		regions: make(map[Address]MemoryRegion),
	}
	if size > 1 {
		a.free = []span{{start: 1, size: size - 1}}
	}
	return a
}

func (a *RegionAllocator) Allocate(pid ProcessID, size uint64) (Address, error) {
	if size == 0 {
		return 0, &Error{Op: "allocate", Kind: KindInvalidArgument, PID: pid,
			Err: fmt.Errorf("zero-size allocation")}
	}
	for i := range a.free {
		sp := &a.free[i]
		if sp.size < size {
			continue
		}
		addr := sp.start
		sp.start += Address(size)
		sp.size -= size
		if sp.size == 0 {
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
		a.regions[addr] = MemoryRegion{Start: addr, Size: size, Process: pid}
		return addr, nil
	}
	return 0, &Error{Op: "allocate", Kind: KindOutOfMemory, PID: pid,
		Err: fmt.Errorf("%d bytes requested, %d available", size, a.Available())}
}

func (a *RegionAllocator) Deallocate(pid ProcessID, addr Address) error {
	r, ok := a.regions[addr]
	if !ok {
		return &Error{Op: "deallocate", Kind: KindNotFound, PID: pid,
			Err: fmt.Errorf("no region at %#x", uint64(addr))}
	}
	if r.Process != pid {
		return &Error{Op: "deallocate", Kind: KindPermissionDenied, PID: pid,
			Err: fmt.Errorf("region %#x owned by pid %d", uint64(addr), r.Process)}
	}
	a.release(r)
	return nil
}

func (a *RegionAllocator) Release(pid ProcessID) {
	for _, r := range a.Regions(pid) {
		a.release(r)
	}
}

// Regions returns the regions owned by pid in address order.
func (a *RegionAllocator) Regions(pid ProcessID) []MemoryRegion {
	var out []MemoryRegion
	for _, r := range a.regions {
		if r.Process == pid {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Available returns the number of free bytes.
func (a *RegionAllocator) Available() uint64 {
	var n uint64
	for _, sp := range a.free {
		n += sp.size
	}
	return n
}

func (a *RegionAllocator) release(r MemoryRegion) {
	delete(a.regions, r.Start)

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].start > r.Start })
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = span{start: r.Start, size: r.Size}

	// Merge with the following span, then with the preceding one.
	if i+1 < len(a.free) && a.free[i].start+Address(a.free[i].size) == a.free[i+1].start {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].start+Address(a.free[i-1].size) == a.free[i].start {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}
