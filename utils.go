package memalloc

import (
	"encoding/binary"
	"unsafe"
)

// wordSize is the size of the header stored in front of every allocation and
// the alignment of every payload.
const wordSize = 8

// nextPowerOfTwo returns the smallest power of two >= n. Zero maps to 1.
// The result is 0 when n is larger than the biggest representable power.
func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	// Smear the highest set bit of n-1 into every lower position, then add
	// one. Starting from n-1 keeps exact powers of two unchanged.
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// ceilDiv returns ceil(n / d) for d > 0.
func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// alignWord rounds n up to the next multiple of wordSize.
func alignWord(n int) int {
	const mask = wordSize - 1
	return (n + mask) &^ mask
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// swap exchanges the values behind a and b.
func swap[T any](a, b *T) {
	tmp := *a
	*a = *b
	*b = tmp
}

// sliceOffset reports the byte offset of p's first element inside base.
// ok is false when p is nil or does not start inside base.
func sliceOffset(base, p []byte) (off int, ok bool) {
	if p == nil || len(base) == 0 {
		return 0, false
	}
	b := uintptr(unsafe.Pointer(unsafe.SliceData(base)))
	q := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	if q < b || q >= b+uintptr(len(base)) {
		return 0, false
	}
	return int(q - b), true
}

// readHeader returns the size recorded in the header that precedes the
// payload at off.
func readHeader(buf []byte, off int) int {
	invariant(off >= wordSize, "header read before buffer start (payload offset %d)", off)
	return int(binary.LittleEndian.Uint64(buf[off-wordSize : off]))
}

// writeHeader records size in the header that precedes the payload at off.
func writeHeader(buf []byte, off, size int) {
	invariant(off >= wordSize, "header write before buffer start (payload offset %d)", off)
	binary.LittleEndian.PutUint64(buf[off-wordSize:off], uint64(size))
}

// roundCapacity rounds a caller supplied size up to a power of two that still
// fits in an int.
func roundCapacity(n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	p := nextPowerOfTwo(uint64(n))
	if p == 0 || p > uint64(maxInt) {
		return 0, false
	}
	return int(p), true
}

const maxInt = int(^uint(0) >> 1)
