package memalloc

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Allocator is the behaviour shared by Arena and Pool.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	AllocArray(objSize, count int) ([]byte, error)
	Realloc(p []byte, size int) ([]byte, error)
	DuplicateString(s string) (string, error)
	SizeInUse() int
	Reset() error
	Destroy() error
}

var (
	_ Allocator = (*Arena)(nil)
	_ Allocator = (*Pool)(nil)
)

// Alloc returns a pointer to a zeroed T stored inside a. T must not contain
// Go pointers: the backing memory may live outside the Go heap, where the
// garbage collector cannot see them.
func Alloc[T any](a Allocator) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "zero-sized type")
	}
	b, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	clear(b)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// AllocSlice allocates a zeroed slice of n elements of type T inside a.
// The same restriction on Go pointers as Alloc applies.
func AllocSlice[T any](a Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "slice of %d elements", n)
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "zero-sized type")
	}
	b, err := a.AllocArray(elemSize, n)
	if err != nil {
		return nil, err
	}
	clear(b)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}
