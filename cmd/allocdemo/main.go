package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/eapache/queue"
	"github.com/pavanmanishd/memalloc"
	"github.com/pkg/errors"
)

type options struct {
	capacity  int
	blockSize int
	maxNodes  int
	ops       int
	maxSize   int
	seed      uint64
	verbose   bool
}

func main() {
	var opts options
	flag.IntVar(&opts.capacity, "capacity", 64*1024, "Bytes per node")
	flag.IntVar(&opts.blockSize, "block", 64, "Pool block size")
	flag.IntVar(&opts.maxNodes, "nodes", 4, "Maximum chained nodes")
	flag.IntVar(&opts.ops, "ops", 10000, "Pool operations to run")
	flag.IntVar(&opts.maxSize, "max-size", 512, "Largest pool allocation in bytes")
	flag.Uint64Var(&opts.seed, "seed", 1, "Workload seed")
	flag.BoolVar(&opts.verbose, "v", false, "Log allocator events")
	flag.Parse()

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, logger); err != nil {
		logger.Error("allocdemo failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	if opts.maxSize <= 0 || opts.ops < 0 {
		return errors.Errorf("invalid workload: max-size %d, ops %d", opts.maxSize, opts.ops)
	}

	p, err := memalloc.NewPool(opts.capacity, opts.blockSize, opts.maxNodes, memalloc.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer p.Destroy()

	stats, err := churn(p, opts)
	if err != nil {
		return err
	}
	fmt.Printf("pool workload: %d allocs, %d frees, %d refused, %d still live\n",
		stats.allocs, stats.frees, stats.refused, stats.live)
	if err := p.Print(os.Stdout); err != nil {
		return err
	}
	m := p.Metrics()
	fmt.Printf("free regions: %d, utilization: %.1f%%\n", m.NumFreeRegions, m.Utilization*100)

	a, err := memalloc.NewArena(opts.capacity, opts.maxNodes, memalloc.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "create arena")
	}
	defer a.Destroy()

	n, err := fillStrings(a)
	if err != nil {
		return err
	}
	fmt.Printf("arena workload: %d strings\n", n)
	return a.Print(os.Stdout)
}

type churnStats struct {
	allocs, frees, refused, live int
}

// churn runs a random alloc/free mix against p. Live allocations are kept in
// FIFO order so the oldest one is always freed first.
func churn(p *memalloc.Pool, opts options) (churnStats, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	live := queue.New()
	var stats churnStats

	for i := 0; i < opts.ops; i++ {
		if live.Length() > 0 && rng.IntN(2) == 0 {
			b := live.Remove().([]byte)
			err := p.Free(b)
			switch {
			case errors.Is(err, memalloc.ErrOutOfCapacity):
				// No room for another free region descriptor; retry later.
				live.Add(b)
				stats.refused++
			case err != nil:
				return stats, errors.Wrapf(err, "op %d: free %d bytes", i, len(b))
			default:
				stats.frees++
			}
			continue
		}

		b, err := p.Alloc(1 + rng.IntN(opts.maxSize))
		switch {
		case errors.Is(err, memalloc.ErrOutOfCapacity):
			stats.refused++
			continue
		case err != nil:
			return stats, errors.Wrapf(err, "op %d: alloc", i)
		}
		b[0] = byte(i)
		live.Add(b)
		stats.allocs++
	}
	stats.live = live.Length()
	return stats, nil
}

// fillStrings duplicates numbered strings into a until it runs out of room.
func fillStrings(a *memalloc.Arena) (int, error) {
	for n := 0; ; n++ {
		_, err := a.DuplicateString(fmt.Sprintf("entry-%06d", n))
		if errors.Is(err, memalloc.ErrOutOfCapacity) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
