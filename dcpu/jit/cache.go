//go:build amd64

package jit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// chunk is one cached translation: the executable mapping backing it, the
// entry point dcpu/exec invokes, and the total static cycle cost recorded
// at translation time (spec.md §4.2's "cost map records the chunk's total
// static cost").
type chunk struct {
	mapping []byte
	entry   uintptr
	cost    uint32
}

// Cache maps a chunk's start PC to its compiled translation (spec.md §3's
// code cache entry, §4.2's "cache by PC"). There is no invalidation on
// writes: self-modifying code keeps running the stale chunk until the
// cache is dropped wholesale, the policy spec.md accepts as a Non-goal.
type Cache struct {
	mem    *dcpu.Memory
	chunks map[dcpu.Word]*chunk
	mapped []*chunk // every mapping ever installed, for teardown
}

// NewCache constructs an empty cache over mem. mem must outlive the
// cache: every translation reads directly out of it.
func NewCache(mem *dcpu.Memory) *Cache {
	return &Cache{mem: mem, chunks: make(map[dcpu.Word]*chunk)}
}

// Lookup returns the chunk starting at pc, translating and installing it
// first on a cache miss.
func (c *Cache) Lookup(pc dcpu.Word) (*chunk, error) {
	if ch, ok := c.chunks[pc]; ok {
		return ch, nil
	}
	code, cost, err := Translate(c.mem, pc)
	if err != nil {
		return nil, fmt.Errorf("jit: translate at %#06x: %w", pc, err)
	}
	ch, err := c.install(code, cost)
	if err != nil {
		return nil, err
	}
	c.chunks[pc] = ch
	return ch, nil
}

// install maps code into an executable page, per spec.md §5: R/W during
// the copy, flipped to R/X before it is ever invoked (grounded on
// other_examples/ascrivener-jam__recompiler.go's Mmap/Mprotect sequence).
func (c *Cache) install(code []byte, cost uint32) (*chunk, error) {
	size := len(code)
	if size == 0 {
		size = 1
	}
	mapping, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap chunk: %v", dcpu.ErrHostAssembler, err)
	}
	copy(mapping, code)
	if err := unix.Mprotect(mapping, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mapping)
		return nil, fmt.Errorf("%w: mprotect chunk: %v", dcpu.ErrHostAssembler, err)
	}
	ch := &chunk{mapping: mapping, entry: uintptr(unsafe.Pointer(&mapping[0])), cost: cost}
	c.mapped = append(c.mapped, ch)
	return ch, nil
}

// Close releases every mapping the cache has ever installed, flipping each
// back to R/W before unmapping it. Called once at emulator teardown
// (spec.md §5).
func (c *Cache) Close() error {
	var firstErr error
	for _, ch := range c.mapped {
		unix.Mprotect(ch.mapping, unix.PROT_READ|unix.PROT_WRITE)
		if err := unix.Munmap(ch.mapping); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.mapped = nil
	c.chunks = make(map[dcpu.Word]*chunk)
	return firstErr
}

// Len reports the number of distinct start PCs currently cached, for
// tests and diagnostics.
func (c *Cache) Len() int { return len(c.chunks) }
