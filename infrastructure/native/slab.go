package native

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultSlabSize is the size of a SlabArena created with size 0.
const DefaultSlabSize = 1 << 20

// reservedPrefix keeps offset 0 unused so it never denotes a live buffer.
const reservedPrefix = 8

type span struct {
	offset uint32
	size   uint32
}

// SlabArena is a fixed-size byte slab with first-fit allocation.
// Every live allocation is tracked, so double frees and size mismatches are
// reported instead of corrupting the free list.
type SlabArena struct {
	mem   []byte
	free  []span // sorted by offset, coalesced
	live  map[uint32]uint32
	stats ArenaStats
	mu    sync.Mutex
}

// ArenaStats counts the primitive operations performed on a SlabArena.
type ArenaStats struct {
	Allocs   int
	Deallocs int
	Reads    int
	Writes   int
	InUse    uint32
}

// NewSlabArena creates an arena of size bytes.
func NewSlabArena(size uint32) *SlabArena {
	if size == 0 {
		size = DefaultSlabSize
	}
	return &SlabArena{
		mem:  make([]byte, size),
		free: []span{{offset: reservedPrefix, size: size - reservedPrefix}},
		live: make(map[uint32]uint32),
	}
}

// Alloc implements ports.Arena.
func (a *SlabArena) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("slab: zero-size allocation")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, s := range a.free {
		if s.size < size {
			continue
		}
		offset := s.offset
		if s.size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = span{offset: s.offset + size, size: s.size - size}
		}
		a.live[offset] = size
		a.stats.Allocs++
		a.stats.InUse += size
		return offset, nil
	}
	return 0, fmt.Errorf("slab: out of memory allocating %d bytes (in use %d of %d)", size, a.stats.InUse, len(a.mem))
}

// Dealloc implements ports.Arena.
func (a *SlabArena) Dealloc(offset, size uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	got, ok := a.live[offset]
	if !ok {
		return fmt.Errorf("slab: dealloc of unknown offset 0x%x", offset)
	}
	if got != size {
		return fmt.Errorf("slab: dealloc size mismatch at 0x%x: allocated %d, released %d", offset, got, size)
	}
	delete(a.live, offset)
	a.stats.Deallocs++
	a.stats.InUse -= size
	a.insertFree(span{offset: offset, size: size})
	return nil
}

func (a *SlabArena) insertFree(s span) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].offset > s.offset })
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s

	// merge with successor, then predecessor
	if i+1 < len(a.free) && a.free[i].offset+a.free[i].size == a.free[i+1].offset {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].offset+a.free[i-1].size == a.free[i].offset {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// ReadString implements ports.Arena.
func (a *SlabArena) ReadString(offset, length uint32) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkRange(offset, length); err != nil {
		return "", err
	}
	a.stats.Reads++
	return string(a.mem[offset : offset+length]), nil
}

// WriteString implements ports.Arena.
func (a *SlabArena) WriteString(offset uint32, text string) error {
	return a.Write(offset, []byte(text))
}

// Write copies data into the arena at offset.
func (a *SlabArena) Write(offset uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkRange(offset, uint32(len(data))); err != nil { //nolint:gosec // G115: bounded by checkRange
		return err
	}
	a.stats.Writes++
	copy(a.mem[offset:], data)
	return nil
}

func (a *SlabArena) checkRange(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if offset < reservedPrefix || end > uint64(len(a.mem)) {
		return fmt.Errorf("slab: range 0x%x+%d out of bounds", offset, length)
	}
	return nil
}

// Stats returns a snapshot of the arena counters.
func (a *SlabArena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Live returns the number of outstanding allocations.
func (a *SlabArena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Size returns the capacity of the slab in bytes.
func (a *SlabArena) Size() uint32 {
	return uint32(len(a.mem)) //nolint:gosec // G115: sized from a uint32
}
