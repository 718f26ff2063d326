// Package memalloc implements two allocators over raw backing buffers: a
// chained bump allocator (Arena) and a best-fit block allocator with
// per-object free and coalescing (Pool).
//
// # Overview
//
// Both allocators hand out []byte slices carved from large buffers that are,
// by default, mapped outside the Go heap. Every allocation is preceded by an
// 8-byte size header and starts on an 8-byte boundary. When the current
// buffers cannot satisfy a request, a new buffer ("node") of the same size is
// chained, up to a caller supplied limit.
//
//   - Arena: O(1) allocation, no individual free, Reset/Destroy release
//     everything at once. Good for per-request or per-frame lifetimes.
//   - Pool: memory is split into fixed-size blocks; allocations take whole
//     runs of blocks and can be freed one by one. Freed runs are merged with
//     their neighbours immediately, bounding external fragmentation.
//
// # Basic Usage
//
//	a, err := memalloc.NewArena(64<<10, 4) // 64 KiB nodes, at most 4 of them
//	if err != nil {
//		return err
//	}
//	defer a.Destroy()
//
//	buf, err := a.Alloc(1024)
//	name, err := a.DuplicateString("request-42")
//	hdr, err := memalloc.Alloc[Header](a)
//
//	a.Reset() // every allocation is gone, nodes are kept
//
//	p, err := memalloc.NewPool(1<<20, 64, 2) // 1 MiB nodes of 64 byte blocks
//	if err != nil {
//		return err
//	}
//	defer p.Destroy()
//
//	b, err := p.Alloc(100) // two blocks
//	err = p.Free(b)
//
// # Errors
//
// Misuse is reported through wrapped sentinel errors: ErrInvalidArgument,
// ErrOutOfCapacity, ErrOutOfMemory and ErrInvalidPointer. Test with errors.Is.
// Broken internal invariants panic.
//
// # Thread Safety
//
// Arena and Pool are not thread-safe. SafeArena and SafePool wrap them with a
// mutex.
//
// # Important Notes
//
//   - Returned slices borrow allocator memory: they are invalid after Reset,
//     Destroy or (for pools) Free.
//   - Types stored with Alloc or AllocSlice must not contain Go pointers.
//   - AllocArray does not check objSize*count for overflow.
package memalloc
