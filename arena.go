package memalloc

import (
	"log/slog"
	"unsafe"

	"github.com/pkg/errors"
)

// node is a single backing buffer within an arena.
type node struct {
	buf    []byte // backing memory, len == arena capacity
	offset int    // write cursor; always < len(buf)
}

// fits reports whether need more bytes can be bumped without the cursor
// reaching the end of the buffer.
func (n *node) fits(need int) bool {
	return n.offset+need < len(n.buf)
}

// bump writes the header for a size byte allocation and advances the cursor
// by need bytes.
func (n *node) bump(size, need int) []byte {
	start := n.offset + wordSize
	writeHeader(n.buf, start, size)
	n.offset += need
	return n.buf[start : start+size : start+size]
}

// Arena is a chained bump allocator. Every allocation is preceded by an
// 8-byte size header and padded to the word boundary. When no node can fit a
// request a new node of the same capacity is chained, up to maxNodes.
// Not goroutine-safe; use SafeArena for concurrent access.
type Arena struct {
	nodes    []node
	capacity int
	maxNodes int

	backend     Backend
	ownsBackend bool
	logger      *slog.Logger
}

// NewArena creates an arena whose nodes hold capacity bytes, rounded up to a
// power of two, and that may chain up to maxNodes nodes in total.
func NewArena(capacity, maxNodes int, opts ...Option) (*Arena, error) {
	if maxNodes < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "negative node limit %d", maxNodes)
	}
	rounded, ok := roundCapacity(capacity)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "arena capacity %d", capacity)
	}

	c := newConfig(opts)
	backend, owned := resolveBackend(c)
	a := &Arena{
		capacity:    rounded,
		maxNodes:    maxNodes,
		backend:     backend,
		ownsBackend: owned,
		logger:      c.logger,
	}
	if err := a.grow(); err != nil {
		if owned {
			_ = backend.Close()
		}
		return nil, err
	}
	return a, nil
}

// Alloc returns size bytes from the arena. The slice is zeroed and stays
// valid until Reset or Destroy.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if err := a.checkLive(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "arena alloc of %d bytes", size)
	}
	if size >= a.capacity {
		return nil, errors.Wrapf(ErrOutOfCapacity, "%d bytes never fit a %d byte node", size, a.capacity)
	}
	need := wordSize + alignWord(size)
	if need >= a.capacity {
		return nil, errors.Wrapf(ErrOutOfCapacity, "%d bytes never fit a %d byte node", size, a.capacity)
	}

	for i := range a.nodes {
		if n := &a.nodes[i]; n.fits(need) {
			return n.bump(size, need), nil
		}
	}

	// Slow path: every node is full, chain a new one.
	if len(a.nodes) >= a.maxNodes {
		if a.logger != nil {
			a.logger.Warn("memalloc: arena exhausted",
				slog.Int("size", size),
				slog.Int("nodes", len(a.nodes)),
				slog.Int("max_nodes", a.maxNodes))
		}
		return nil, errors.Wrapf(ErrOutOfCapacity, "arena node limit %d reached", a.maxNodes)
	}
	if err := a.grow(); err != nil {
		return nil, err
	}
	n := &a.nodes[len(a.nodes)-1]
	invariant(n.fits(need), "fresh %d byte node cannot fit %d bytes", a.capacity, need)
	return n.bump(size, need), nil
}

// AllocArray returns room for count objects of objSize bytes each. The
// product is not checked for overflow; callers must validate it.
func (a *Arena) AllocArray(objSize, count int) ([]byte, error) {
	return a.Alloc(objSize * count)
}

// Realloc returns a fresh allocation of size bytes holding the first
// min(old, size) bytes of p. The old bytes are not reclaimed until the arena
// is reset or destroyed.
func (a *Arena) Realloc(p []byte, size int) ([]byte, error) {
	if err := a.checkLive(); err != nil {
		return nil, err
	}
	old, err := a.lookup(p)
	if err != nil {
		return nil, err
	}
	fresh, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(fresh, old)
	return fresh, nil
}

// DuplicateString copies s plus a NUL terminator into the arena and returns
// a string backed by the copy.
func (a *Arena) DuplicateString(s string) (string, error) {
	b, err := a.Alloc(len(s) + 1)
	if err != nil {
		return "", err
	}
	copy(b, s)
	b[len(s)] = 0
	return unsafe.String(unsafe.SliceData(b), len(s)), nil
}

// Reset zeroes the used part of every node and rewinds the cursors. Chained
// nodes are kept for reuse.
func (a *Arena) Reset() error {
	if err := a.checkLive(); err != nil {
		return err
	}
	for i := range a.nodes {
		n := &a.nodes[i]
		clear(n.buf[:n.offset])
		n.offset = 0
	}
	if a.logger != nil {
		a.logger.Debug("memalloc: arena reset", slog.Int("nodes", len(a.nodes)))
	}
	return nil
}

// Destroy returns every node to the backend and makes the arena unusable.
func (a *Arena) Destroy() error {
	if err := a.checkLive(); err != nil {
		return err
	}
	var first error
	for i := range a.nodes {
		if err := a.backend.Free(a.nodes[i].buf); err != nil && first == nil {
			first = err
		}
	}
	if a.ownsBackend {
		if err := a.backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.logger != nil {
		a.logger.Debug("memalloc: arena destroyed", slog.Int("nodes", len(a.nodes)))
	}
	a.nodes = nil
	return first
}

// lookup returns the live payload p refers to. p must start exactly at a
// payload handed out by this arena.
func (a *Arena) lookup(p []byte) ([]byte, error) {
	if len(p) == 0 {
		return nil, errors.Wrap(ErrInvalidPointer, "empty slice")
	}
	for i := range a.nodes {
		n := &a.nodes[i]
		off, ok := sliceOffset(n.buf, p)
		if !ok {
			continue
		}
		if off < wordSize {
			return nil, errors.Wrapf(ErrInvalidPointer, "offset %d has no header", off)
		}
		size := readHeader(n.buf, off)
		if size <= 0 || size > n.offset-off {
			return nil, errors.Wrapf(ErrInvalidPointer, "header %d at offset %d exceeds node cursor %d", size, off, n.offset)
		}
		return n.buf[off : off+size], nil
	}
	return nil, errors.Wrap(ErrInvalidPointer, "slice not owned by arena")
}

// grow appends a new zeroed node.
func (a *Arena) grow() error {
	buf, err := a.backend.Calloc(a.capacity)
	if err != nil {
		return errors.Wrapf(ErrOutOfMemory, "arena node of %d bytes: %v", a.capacity, err)
	}
	invariant(len(buf) == a.capacity, "backend returned %d bytes, want %d", len(buf), a.capacity)
	a.nodes = append(a.nodes, node{buf: buf})
	if a.logger != nil && len(a.nodes) > 1 {
		a.logger.Debug("memalloc: arena node chained",
			slog.Int("nodes", len(a.nodes)),
			slog.Int("capacity", a.capacity))
	}
	return nil
}

// checkLive rejects nil and destroyed arenas.
func (a *Arena) checkLive() error {
	if a == nil {
		return errors.Wrap(ErrInvalidArgument, "nil arena")
	}
	if a.nodes == nil {
		return errors.Wrap(ErrInvalidArgument, "arena used after Destroy")
	}
	return nil
}
