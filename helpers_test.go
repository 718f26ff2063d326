package memalloc

import (
	"encoding/binary"
	"slices"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
)

// header reads the size header stored right before b.
func header(b []byte) int {
	h := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(b)), -wordSize)), wordSize)
	return int(binary.LittleEndian.Uint64(h))
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func allEqual(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// checkFreeLists verifies every structural invariant of every pool node:
// ascending order, consistent back links, no adjacent or overlapping regions,
// and free blocks + live blocks == node blocks.
func checkFreeLists(t *testing.T, p *Pool, liveBlocks []int) {
	t.Helper()
	for ni, n := range p.nodes {
		fl := &n.free
		prev := noRegion
		var regs []FreeRegion
		for i := fl.head; i != noRegion; i = fl.slots[i].next {
			r := fl.slots[i]
			if r.prev != prev {
				t.Fatalf("node %d: region slot %d prev = %d, want %d", ni, i, r.prev, prev)
			}
			if r.blocks <= 0 {
				t.Fatalf("node %d: empty region %+v on list", ni, *r)
			}
			if prev != noRegion && fl.slots[prev].blocks > r.blocks {
				t.Fatalf("node %d: list not ascending: %v", ni, fl.regions())
			}
			regs = append(regs, FreeRegion{Start: r.start, Blocks: r.blocks})
			prev = i
		}

		slices.SortFunc(regs, func(a, b FreeRegion) int { return a.Start - b.Start })
		free := 0
		for i, r := range regs {
			free += r.Blocks
			if i > 0 && regs[i-1].Start+regs[i-1].Blocks >= r.Start {
				t.Fatalf("node %d: regions %v and %v touch", ni, regs[i-1], r)
			}
			if r.Start+r.Blocks > p.blocks {
				t.Fatalf("node %d: region %v past %d blocks", ni, r, p.blocks)
			}
		}
		if liveBlocks != nil && free+liveBlocks[ni] != p.blocks {
			t.Fatalf("node %d: free %d + live %d != %d blocks", ni, free, liveBlocks[ni], p.blocks)
		}
	}
}

func newTestArena(t testing.TB, capacity, maxNodes int) *Arena {
	t.Helper()
	a, err := NewArena(capacity, maxNodes, WithHeapBackend())
	if err != nil {
		t.Fatalf("NewArena(%d, %d) error = %v", capacity, maxNodes, err)
	}
	return a
}
