package memalloc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by arena and pool operations. Call sites wrap them with
// context; use errors.Is to test for a class of failure.
var (
	// ErrInvalidArgument reports a nil or destroyed handle, a non-positive
	// size, or a block size smaller than the word size.
	ErrInvalidArgument = errors.New("memalloc: invalid argument")
	// ErrOutOfCapacity reports that every chained node is exhausted and the
	// node limit has been reached.
	ErrOutOfCapacity = errors.New("memalloc: out of capacity")
	// ErrOutOfMemory reports that the backend could not provide a buffer.
	ErrOutOfMemory = errors.New("memalloc: out of memory")
	// ErrInvalidPointer reports a slice that was not handed out by this
	// allocator, was already freed, or carries a corrupted header.
	ErrInvalidPointer = errors.New("memalloc: invalid pointer")
)

// invariant panics when an internal precondition does not hold. These are
// allocator defects (or the result of earlier undefined use), never caller
// errors, and must not be recovered from.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic("memalloc: invariant violated: " + fmt.Sprintf(format, args...))
	}
}
