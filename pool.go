package memalloc

import (
	"log/slog"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	metaMinSize  = 1 << 10  // 1 KiB
	metaMaxSize  = 10 << 20 // 10 MiB
	metaMaxNodes = 5
)

// poolNode is one backing buffer of a pool together with its free list.
// Block i occupies buf[i*stride : (i+1)*stride]: an 8-byte header followed
// by blockSize payload bytes.
type poolNode struct {
	buf  []byte
	free freeList
}

// Pool is a chained best-fit block allocator with per-allocation Free and
// immediate coalescing of adjacent free blocks. Free list descriptors are
// kept in a private arena per node. Not goroutine-safe; use SafePool for
// concurrent access.
type Pool struct {
	nodes     []*poolNode
	capacity  int
	blockSize int
	blocks    int // blocks per node
	maxNodes  int

	backend     Backend
	ownsBackend bool
	logger      *slog.Logger
}

// NewPool creates a pool whose nodes hold capacity bytes split into blocks
// of blockSize bytes, both rounded up to powers of two, and that may chain up
// to maxNodes nodes in total.
func NewPool(capacity, blockSize, maxNodes int, opts ...Option) (*Pool, error) {
	if maxNodes < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "negative node limit %d", maxNodes)
	}
	if blockSize < wordSize {
		return nil, errors.Wrapf(ErrInvalidArgument, "block size %d smaller than word size %d", blockSize, wordSize)
	}
	roundedCap, ok := roundCapacity(capacity)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool capacity %d", capacity)
	}
	roundedBlock, ok := roundCapacity(blockSize)
	if !ok || roundedBlock > roundedCap {
		return nil, errors.Wrapf(ErrInvalidArgument, "block size %d for capacity %d", blockSize, roundedCap)
	}
	blocks := roundedCap / roundedBlock
	if blocks > (maxInt-wordSize)/(wordSize+roundedBlock) {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool capacity %d overflows with headers", roundedCap)
	}

	c := newConfig(opts)
	backend, owned := resolveBackend(c)
	p := &Pool{
		capacity:    roundedCap,
		blockSize:   roundedBlock,
		blocks:      blocks,
		maxNodes:    maxNodes,
		backend:     backend,
		ownsBackend: owned,
		logger:      c.logger,
	}
	if _, err := p.grow(); err != nil {
		if owned {
			_ = backend.Close()
		}
		return nil, err
	}
	return p, nil
}

// stride is the distance between two block headers.
func (p *Pool) stride() int { return wordSize + p.blockSize }

// Alloc returns size bytes spanning the smallest run of free blocks that can
// hold them. The slice is zeroed and stays valid until it is freed, or the
// pool is reset or destroyed.
func (p *Pool) Alloc(size int) ([]byte, error) {
	if err := p.checkLive(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool alloc of %d bytes", size)
	}
	if size > p.capacity {
		return nil, errors.Wrapf(ErrOutOfCapacity, "%d bytes never fit a %d byte node", size, p.capacity)
	}
	blocks := ceilDiv(size, p.blockSize)

	for _, n := range p.nodes {
		if start, ok := n.free.take(blocks); ok {
			return p.place(n, start, size), nil
		}
	}

	if len(p.nodes) >= p.maxNodes {
		if p.logger != nil {
			p.logger.Warn("memalloc: pool exhausted",
				slog.Int("size", size),
				slog.Int("blocks", blocks),
				slog.Int("nodes", len(p.nodes)),
				slog.Int("max_nodes", p.maxNodes))
		}
		return nil, errors.Wrapf(ErrOutOfCapacity, "pool node limit %d reached", p.maxNodes)
	}
	n, err := p.grow()
	if err != nil {
		return nil, err
	}
	start, ok := n.free.take(blocks)
	invariant(ok && start == 0, "fresh node cannot fit %d blocks", blocks)
	return p.place(n, start, size), nil
}

// place writes the header of an allocation starting at block start.
func (p *Pool) place(n *poolNode, start, size int) []byte {
	off := start*p.stride() + wordSize
	writeHeader(n.buf, off, size)
	return n.buf[off : off+size : off+size]
}

// AllocArray returns room for count objects of objSize bytes each. The
// product is not checked for overflow; callers must validate it.
func (p *Pool) AllocArray(objSize, count int) ([]byte, error) {
	return p.Alloc(objSize * count)
}

// Free returns the blocks behind b to the pool and zeroes them. b must be a
// slice returned by Alloc and not freed since; anything else is rejected
// with ErrInvalidPointer. When the freed run touches no free region and the
// node's metadata arena is full, Free fails with ErrOutOfCapacity and b stays
// allocated.
func (p *Pool) Free(b []byte) error {
	if err := p.checkLive(); err != nil {
		return err
	}
	if len(b) == 0 {
		return errors.Wrap(ErrInvalidArgument, "free of empty slice")
	}
	n, start, size, err := p.lookup(b)
	if err != nil {
		return err
	}
	if err := n.free.release(start, ceilDiv(size, p.blockSize)); err != nil {
		return err
	}
	off := start*p.stride() + wordSize
	clear(n.buf[off-wordSize : off+size])
	return nil
}

// Realloc moves b into a new allocation of size bytes. The pool only grows
// allocations: a size below the current one fails with ErrInvalidArgument.
func (p *Pool) Realloc(b []byte, size int) ([]byte, error) {
	if err := p.checkLive(); err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "realloc of empty slice")
	}
	n, start, oldSize, err := p.lookup(b)
	if err != nil {
		return nil, err
	}
	if oldSize > size {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool realloc shrinks %d to %d bytes", oldSize, size)
	}
	off := start*p.stride() + wordSize
	old := n.buf[off : off+oldSize]

	fresh, err := p.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(fresh, old)
	if err := p.Free(old); err != nil {
		// Best effort: the old allocation was already validated above.
		_ = p.Free(fresh)
		return nil, err
	}
	return fresh, nil
}

// DuplicateString copies s plus a NUL terminator into the pool and returns a
// string backed by the copy.
func (p *Pool) DuplicateString(s string) (string, error) {
	b, err := p.Alloc(len(s) + 1)
	if err != nil {
		return "", err
	}
	copy(b, s)
	b[len(s)] = 0
	return unsafe.String(unsafe.SliceData(b), len(s)), nil
}

// Reset frees every allocation in every node at once.
func (p *Pool) Reset() error {
	if err := p.checkLive(); err != nil {
		return err
	}
	for _, n := range p.nodes {
		n.free.seed(p.blocks)
		clear(n.buf)
	}
	if p.logger != nil {
		p.logger.Debug("memalloc: pool reset", slog.Int("nodes", len(p.nodes)))
	}
	return nil
}

// Destroy releases every node's buffer and metadata arena and makes the pool
// unusable.
func (p *Pool) Destroy() error {
	if err := p.checkLive(); err != nil {
		return err
	}
	var first error
	for _, n := range p.nodes {
		if err := p.backend.Free(n.buf); err != nil && first == nil {
			first = err
		}
		if err := n.free.meta.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	if p.ownsBackend {
		if err := p.backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	if p.logger != nil {
		p.logger.Debug("memalloc: pool destroyed", slog.Int("nodes", len(p.nodes)))
	}
	p.nodes = nil
	return first
}

// FreeRegions returns the free list of node i in list order, or nil when i
// is out of range.
func (p *Pool) FreeRegions(i int) []FreeRegion {
	if p == nil || i < 0 || i >= len(p.nodes) {
		return nil
	}
	return p.nodes[i].free.regions()
}

// lookup finds the node and first block of the live allocation b.
func (p *Pool) lookup(b []byte) (n *poolNode, start, size int, err error) {
	stride := p.stride()
	for _, node := range p.nodes {
		off, ok := sliceOffset(node.buf, b)
		if !ok {
			continue
		}
		if off < wordSize || (off-wordSize)%stride != 0 {
			return nil, 0, 0, errors.Wrapf(ErrInvalidPointer, "offset %d is not a block payload", off)
		}
		start = (off - wordSize) / stride
		size = readHeader(node.buf, off)
		if size == 0 {
			return nil, 0, 0, errors.Wrapf(ErrInvalidPointer, "block %d is not allocated", start)
		}
		if size < 0 || size > p.capacity || start+ceilDiv(size, p.blockSize) > p.blocks {
			return nil, 0, 0, errors.Wrapf(ErrInvalidPointer, "header %d at block %d exceeds node", size, start)
		}
		return node, start, size, nil
	}
	return nil, 0, 0, errors.Wrap(ErrInvalidPointer, "slice not owned by pool")
}

// grow appends a node with a zeroed buffer and a fully free list.
func (p *Pool) grow() (*poolNode, error) {
	meta, err := NewArena(clamp(p.capacity/100, metaMinSize, metaMaxSize), metaMaxNodes,
		WithBackend(p.backend), WithLogger(p.logger))
	if err != nil {
		return nil, errors.Wrap(err, "pool metadata arena")
	}
	buf, err := p.backend.Calloc(p.blocks * p.stride())
	if err != nil {
		_ = meta.Destroy()
		return nil, errors.Wrapf(ErrOutOfMemory, "pool node of %d bytes: %v", p.blocks*p.stride(), err)
	}

	n := &poolNode{buf: buf, free: freeList{meta: meta}}
	n.free.seed(p.blocks)
	p.nodes = append(p.nodes, n)
	if p.logger != nil && len(p.nodes) > 1 {
		p.logger.Debug("memalloc: pool node chained",
			slog.Int("nodes", len(p.nodes)),
			slog.Int("capacity", p.capacity),
			slog.Int("block_size", p.blockSize))
	}
	return n, nil
}

// checkLive rejects nil and destroyed pools.
func (p *Pool) checkLive() error {
	if p == nil {
		return errors.Wrap(ErrInvalidArgument, "nil pool")
	}
	if p.nodes == nil {
		return errors.Wrap(ErrInvalidArgument, "pool used after Destroy")
	}
	return nil
}
