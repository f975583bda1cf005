package kernel

import (
	"sync"
	"testing"
)

func TestIDGenStartsAtOne(t *testing.T) {
	var g IDGen
	if got := g.Next(); got != 1 {
		t.Fatalf("Next() = %d, want 1", got)
	}
	if got := g.Next(); got != 2 {
		t.Fatalf("Next() = %d, want 2", got)
	}
	if got := g.Last(); got != 2 {
		t.Fatalf("Last() = %d, want 2", got)
	}

	g.Reset()
	if got := g.Next(); got != 1 {
		t.Fatalf("Next() after Reset = %d, want 1", got)
	}
}

func TestIDGenConcurrentUnique(t *testing.T) {
	const (
		workers = 8
		perWork = 1000
	)

	var g IDGen
	out := make(chan uint64, workers*perWork)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				out <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[uint64]bool, workers*perWork)
	for id := range out {
		if seen[id] {
			t.Fatalf("Next() duplicate id %d", id)
		}
		seen[id] = true
	}
	if got := g.Last(); got != workers*perWork {
		t.Fatalf("Last() = %d, want %d", got, workers*perWork)
	}
}

func TestIDsAreIndependent(t *testing.T) {
	ids := NewIDs()
	ids.nextProcess()
	ids.nextProcess()

	if got := ids.nextThread(); got != 1 {
		t.Fatalf("nextThread() = %d, want 1", got)
	}
	if got := ids.nextMessage(); got != 1 {
		t.Fatalf("nextMessage() = %d, want 1", got)
	}
}
