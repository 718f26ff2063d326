package memalloc

import (
	"github.com/pkg/errors"
	"modernc.org/memory"
)

// Backend supplies the raw buffers that arena and pool nodes carve up.
// Calloc must return zeroed memory of exactly size bytes.
type Backend interface {
	Calloc(size int) ([]byte, error)
	Free(b []byte) error
	Close() error
}

// MmapBackend hands out zeroed buffers mapped outside the Go heap, so large
// arenas add nothing to GC scan work. Not safe for concurrent use.
type MmapBackend struct {
	a memory.Allocator
}

// NewMmapBackend returns an empty MmapBackend.
func NewMmapBackend() *MmapBackend {
	return &MmapBackend{}
}

func (m *MmapBackend) Calloc(size int) ([]byte, error) {
	b, err := m.a.Calloc(size)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "mmap %d bytes: %v", size, err)
	}
	return b[:size:size], nil
}

func (m *MmapBackend) Free(b []byte) error {
	if err := m.a.Free(b); err != nil {
		return errors.Wrap(err, "memalloc: free mmap buffer")
	}
	return nil
}

// Close unmaps every buffer still held by the backend.
func (m *MmapBackend) Close() error {
	return errors.Wrap(m.a.Close(), "memalloc: close mmap backend")
}

// HeapBackend allocates buffers with make and leaves reclamation to the GC.
type HeapBackend struct{}

func (HeapBackend) Calloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.Wrapf(ErrOutOfMemory, "negative buffer size %d", size)
	}
	return make([]byte, size), nil
}

func (HeapBackend) Free([]byte) error { return nil }

func (HeapBackend) Close() error { return nil }

// resolveBackend returns the configured backend, or a fresh private one that
// the caller owns and must close.
func resolveBackend(c config) (b Backend, owned bool) {
	if c.backend != nil {
		return c.backend, false
	}
	return NewMmapBackend(), true
}
