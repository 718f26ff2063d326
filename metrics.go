package memalloc

import (
	"fmt"
	"io"
	"strings"
)

// Capacity returns the rounded capacity of a single arena node.
func (a *Arena) Capacity() int {
	if a == nil || a.nodes == nil {
		return 0
	}
	return a.capacity
}

// MaxNodes returns the maximum number of chained nodes.
func (a *Arena) MaxNodes() int {
	if a == nil {
		return 0
	}
	return a.maxNodes
}

// NumNodes returns the number of nodes currently chained.
func (a *Arena) NumNodes() int {
	if a == nil {
		return 0
	}
	return len(a.nodes)
}

// SizeInUse returns the bytes consumed in the first node, headers and
// padding included.
func (a *Arena) SizeInUse() int {
	if a == nil || len(a.nodes) == 0 {
		return 0
	}
	return a.nodes[0].offset
}

// TotalSizeInUse returns the bytes consumed across every chained node.
func (a *Arena) TotalSizeInUse() int {
	if a == nil {
		return 0
	}
	sum := 0
	for _, n := range a.nodes {
		sum += n.offset
	}
	return sum
}

// Utilization returns the ratio of bytes in use to the capacity of all
// chained nodes (0.0 to 1.0).
func (a *Arena) Utilization() float64 {
	total := a.Capacity() * a.NumNodes()
	if total == 0 {
		return 0
	}
	return float64(a.TotalSizeInUse()) / float64(total)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() ArenaMetrics {
	return ArenaMetrics{
		Capacity:       a.Capacity(),
		MaxNodes:       a.MaxNodes(),
		NumNodes:       a.NumNodes(),
		SizeInUse:      a.SizeInUse(),
		TotalSizeInUse: a.TotalSizeInUse(),
		Utilization:    a.Utilization(),
	}
}

// ArenaMetrics contains statistical information about an arena.
type ArenaMetrics struct {
	Capacity       int     // Bytes per node
	MaxNodes       int     // Node limit
	NumNodes       int     // Nodes chained so far
	SizeInUse      int     // Bytes used in the first node
	TotalSizeInUse int     // Bytes used across all nodes
	Utilization    float64 // TotalSizeInUse over total capacity (0.0-1.0)
}

// Print writes a human readable summary of the arena to w.
func (a *Arena) Print(w io.Writer) error {
	m := a.Metrics()
	_, err := fmt.Fprintf(w,
		"Arena %p: {\n"+
			"  size:        %d bytes;\n"+
			"  size used:   %d bytes;\n"+
			"  max nodes:   %d;\n"+
			"  nodes:       %d;\n"+
			"}\n",
		a, m.Capacity, m.SizeInUse, m.MaxNodes, m.NumNodes)
	return err
}

func (a *Arena) String() string {
	var sb strings.Builder
	_ = a.Print(&sb)
	return sb.String()
}

// Capacity returns the rounded capacity of a single pool node.
func (p *Pool) Capacity() int {
	if p == nil || p.nodes == nil {
		return 0
	}
	return p.capacity
}

// BlockSize returns the rounded block size.
func (p *Pool) BlockSize() int {
	if p == nil || p.nodes == nil {
		return 0
	}
	return p.blockSize
}

// MaxNodes returns the maximum number of chained nodes.
func (p *Pool) MaxNodes() int {
	if p == nil {
		return 0
	}
	return p.maxNodes
}

// NumNodes returns the number of nodes currently chained.
func (p *Pool) NumNodes() int {
	if p == nil {
		return 0
	}
	return len(p.nodes)
}

// SizeInUse returns the bytes held by live allocations across every node,
// counted in whole blocks.
func (p *Pool) SizeInUse() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, n := range p.nodes {
		total += p.capacity - n.free.freeBlocks()*p.blockSize
	}
	return total
}

// NumFreeRegions returns the number of free list entries across every node.
func (p *Pool) NumFreeRegions() int {
	if p == nil {
		return 0
	}
	count := 0
	for _, n := range p.nodes {
		for i := n.free.head; i != noRegion; i = n.free.slots[i].next {
			count++
		}
	}
	return count
}

// Utilization returns the ratio of bytes in use to the capacity of all
// chained nodes (0.0 to 1.0).
func (p *Pool) Utilization() float64 {
	total := p.Capacity() * p.NumNodes()
	if total == 0 {
		return 0
	}
	return float64(p.SizeInUse()) / float64(total)
}

// Metrics returns a snapshot of pool statistics.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		Capacity:       p.Capacity(),
		BlockSize:      p.BlockSize(),
		MaxNodes:       p.MaxNodes(),
		NumNodes:       p.NumNodes(),
		SizeInUse:      p.SizeInUse(),
		NumFreeRegions: p.NumFreeRegions(),
		Utilization:    p.Utilization(),
	}
}

// PoolMetrics contains statistical information about a pool.
type PoolMetrics struct {
	Capacity       int     // Bytes per node
	BlockSize      int     // Bytes per block
	MaxNodes       int     // Node limit
	NumNodes       int     // Nodes chained so far
	SizeInUse      int     // Bytes in allocated blocks across all nodes
	NumFreeRegions int     // Free list entries across all nodes
	Utilization    float64 // SizeInUse over total capacity (0.0-1.0)
}

// Print writes a human readable summary of the pool to w.
func (p *Pool) Print(w io.Writer) error {
	m := p.Metrics()
	_, err := fmt.Fprintf(w,
		"Pool %p: {\n"+
			"  size block:  %d bytes;\n"+
			"  size:        %d bytes/node;\n"+
			"  size used:   %d bytes total;\n"+
			"  max nodes:   %d;\n"+
			"  nodes:       %d;\n"+
			"}\n",
		p, m.BlockSize, m.Capacity, m.SizeInUse, m.MaxNodes, m.NumNodes)
	return err
}

func (p *Pool) String() string {
	var sb strings.Builder
	_ = p.Print(&sb)
	return sb.String()
}
