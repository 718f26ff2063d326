package memalloc

import "sync"

// SafeArena is a mutex-protected wrapper around Arena for concurrent access.
// All operations are thread-safe but come with the overhead of mutex locking.
type SafeArena struct {
	mu sync.Mutex
	a  *Arena
}

var (
	_ Allocator = (*SafeArena)(nil)
	_ Allocator = (*SafePool)(nil)
)

// NewSafeArena creates a thread-safe arena. See NewArena.
func NewSafeArena(capacity, maxNodes int, opts ...Option) (*SafeArena, error) {
	a, err := NewArena(capacity, maxNodes, opts...)
	if err != nil {
		return nil, err
	}
	return &SafeArena{a: a}, nil
}

func (s *SafeArena) Alloc(size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Alloc(size)
}

func (s *SafeArena) AllocArray(objSize, count int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.AllocArray(objSize, count)
}

func (s *SafeArena) Realloc(p []byte, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Realloc(p, size)
}

func (s *SafeArena) DuplicateString(str string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.DuplicateString(str)
}

func (s *SafeArena) SizeInUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.SizeInUse()
}

// Metrics thread-safely returns a snapshot of arena statistics.
func (s *SafeArena) Metrics() ArenaMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Metrics()
}

func (s *SafeArena) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Reset()
}

func (s *SafeArena) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Destroy()
}

// SafePool is a mutex-protected wrapper around Pool for concurrent access.
type SafePool struct {
	mu sync.Mutex
	p  *Pool
}

// NewSafePool creates a thread-safe pool. See NewPool.
func NewSafePool(capacity, blockSize, maxNodes int, opts ...Option) (*SafePool, error) {
	p, err := NewPool(capacity, blockSize, maxNodes, opts...)
	if err != nil {
		return nil, err
	}
	return &SafePool{p: p}, nil
}

func (s *SafePool) Alloc(size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Alloc(size)
}

func (s *SafePool) AllocArray(objSize, count int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.AllocArray(objSize, count)
}

func (s *SafePool) Realloc(b []byte, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Realloc(b, size)
}

func (s *SafePool) DuplicateString(str string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.DuplicateString(str)
}

// Free thread-safely returns b to the pool.
func (s *SafePool) Free(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Free(b)
}

func (s *SafePool) SizeInUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.SizeInUse()
}

// Metrics thread-safely returns a snapshot of pool statistics.
func (s *SafePool) Metrics() PoolMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Metrics()
}

func (s *SafePool) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Reset()
}

func (s *SafePool) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Destroy()
}
