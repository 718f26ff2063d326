package memalloc

import (
	"math"

	"github.com/pkg/errors"
)

const noRegion int32 = -1

// region describes a run of contiguous free blocks. Regions live inside the
// metadata arena and link to each other by slot index.
type region struct {
	start  int
	blocks int
	prev   int32
	next   int32
}

func (r *region) end() int { return r.start + r.blocks }

// FreeRegion is a snapshot of one free list entry.
type FreeRegion struct {
	Start  int // first free block
	Blocks int // number of contiguous free blocks
}

// freeList is a doubly linked list of free regions kept in ascending order of
// block count, so the first region large enough for a request is also the
// smallest one. No two regions are ever physically adjacent.
type freeList struct {
	meta  *Arena
	slots []*region
	spare []int32 // slots orphaned by merges, reused before meta grows
	head  int32
}

// seed drops every region and installs a single one spanning blocks.
func (fl *freeList) seed(blocks int) {
	clear(fl.slots)
	fl.slots = fl.slots[:0]
	fl.spare = fl.spare[:0]
	fl.head = noRegion
	err := fl.meta.Reset()
	invariant(err == nil, "metadata arena reset: %v", err)

	i, err := fl.acquire(0, blocks)
	invariant(err == nil, "seed region: %v", err)
	fl.insertSorted(i)
}

// take carves blocks from the low end of the smallest region that can hold
// them and returns the first block index.
func (fl *freeList) take(blocks int) (int, bool) {
	if blocks <= 0 {
		return 0, false
	}
	for i := fl.head; i != noRegion; i = fl.slots[i].next {
		r := fl.slots[i]
		if r.blocks < blocks {
			continue
		}

		start := r.start
		r.start += blocks
		r.blocks -= blocks
		if r.blocks == 0 {
			fl.unlink(i)
			fl.spare = append(fl.spare, i)
			return start, true
		}

		// The region shrank; move its contents toward the head until the
		// list is ascending again.
		for r.prev != noRegion {
			p := fl.slots[r.prev]
			if r.blocks >= p.blocks {
				break
			}
			swap(&r.start, &p.start)
			swap(&r.blocks, &p.blocks)
			r = p
		}
		return start, true
	}
	return 0, false
}

// release returns blocks starting at start to the list, merging with the
// physically adjacent regions on either side. The whole list is scanned so
// that any overlap with a free region is caught. Nothing changes on error.
func (fl *freeList) release(start, blocks int) error {
	invariant(blocks > 0, "release of %d blocks", blocks)
	end := start + blocks

	left, right := noRegion, noRegion
	for i := fl.head; i != noRegion; i = fl.slots[i].next {
		r := fl.slots[i]
		switch {
		case r.end() == start:
			left = i
		case r.start == end:
			right = i
		case r.start < end && start < r.end():
			return errors.Wrapf(ErrInvalidPointer, "blocks [%d,%d) overlap free region [%d,%d)", start, end, r.start, r.end())
		}
	}

	switch {
	case left != noRegion && right != noRegion:
		l, r := fl.slots[left], fl.slots[right]
		fl.unlink(left)
		fl.unlink(right)
		l.blocks += blocks + r.blocks
		fl.spare = append(fl.spare, right)
		fl.insertSorted(left)
	case left != noRegion:
		fl.unlink(left)
		fl.slots[left].blocks += blocks
		fl.insertSorted(left)
	case right != noRegion:
		r := fl.slots[right]
		fl.unlink(right)
		r.start = start
		r.blocks += blocks
		fl.insertSorted(right)
	default:
		i, err := fl.acquire(start, blocks)
		if err != nil {
			return err
		}
		fl.insertSorted(i)
	}
	return nil
}

// acquire returns an unlinked slot describing [start, start+blocks).
func (fl *freeList) acquire(start, blocks int) (int32, error) {
	var i int32
	if n := len(fl.spare); n > 0 {
		i = fl.spare[n-1]
		fl.spare = fl.spare[:n-1]
	} else {
		if len(fl.slots) >= math.MaxInt32 {
			return noRegion, errors.Wrap(ErrOutOfCapacity, "free list slot table full")
		}
		r, err := Alloc[region](fl.meta)
		if err != nil {
			return noRegion, errors.Wrap(err, "free list metadata")
		}
		fl.slots = append(fl.slots, r)
		i = int32(len(fl.slots) - 1)
	}
	*fl.slots[i] = region{start: start, blocks: blocks, prev: noRegion, next: noRegion}
	return i, nil
}

func (fl *freeList) unlink(i int32) {
	r := fl.slots[i]
	if r.prev != noRegion {
		fl.slots[r.prev].next = r.next
	} else {
		fl.head = r.next
	}
	if r.next != noRegion {
		fl.slots[r.next].prev = r.prev
	}
	r.prev, r.next = noRegion, noRegion
}

// insertSorted links slot i after every region with the same or fewer blocks.
func (fl *freeList) insertSorted(i int32) {
	r := fl.slots[i]
	prev, curr := noRegion, fl.head
	for curr != noRegion && fl.slots[curr].blocks <= r.blocks {
		prev, curr = curr, fl.slots[curr].next
	}

	r.prev, r.next = prev, curr
	if prev != noRegion {
		fl.slots[prev].next = i
	} else {
		fl.head = i
	}
	if curr != noRegion {
		fl.slots[curr].prev = i
	}
}

// freeBlocks returns the number of blocks on the list.
func (fl *freeList) freeBlocks() int {
	total := 0
	for i := fl.head; i != noRegion; i = fl.slots[i].next {
		total += fl.slots[i].blocks
	}
	return total
}

// regions returns the list in list order.
func (fl *freeList) regions() []FreeRegion {
	var out []FreeRegion
	for i := fl.head; i != noRegion; i = fl.slots[i].next {
		r := fl.slots[i]
		out = append(out, FreeRegion{Start: r.start, Blocks: r.blocks})
	}
	return out
}
