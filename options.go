package memalloc

import "log/slog"

// Option configures an Arena or a Pool.
type Option func(*config)

type config struct {
	backend Backend
	logger  *slog.Logger
}

func defaultConfig() config {
	return config{}
}

func newConfig(opts []Option) config {
	c := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// WithLogger sets a structured logger for node growth, exhaustion and
// lifecycle events. Allocators are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBackend makes the allocator draw its buffers from b instead of a
// private mmap-backed backend. The allocator never closes a backend it was
// given.
func WithBackend(b Backend) Option {
	return func(c *config) {
		c.backend = b
	}
}

// WithHeapBackend keeps every buffer on the Go heap.
func WithHeapBackend() Option {
	return WithBackend(HeapBackend{})
}
