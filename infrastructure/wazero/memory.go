package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Guest exports every bridge guest must provide.
const (
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
	ExportRun        = "run"
)

// GuestMemory is the linear memory of a guest module together with its
// allocator exports.
type GuestMemory struct {
	mem        api.Memory
	allocate   api.Function
	deallocate api.Function
}

// NewGuestMemory binds the memory and allocator exports of mod.
func NewGuestMemory(mod api.Module) (*GuestMemory, error) {
	g := &GuestMemory{
		mem:        mod.Memory(),
		allocate:   mod.ExportedFunction(ExportAllocate),
		deallocate: mod.ExportedFunction(ExportDeallocate),
	}
	if g.mem == nil {
		return nil, fmt.Errorf("guest %q has no memory", mod.Name())
	}
	if g.allocate == nil || g.deallocate == nil {
		return nil, fmt.Errorf("guest %q must export %q and %q", mod.Name(), ExportAllocate, ExportDeallocate)
	}
	return g, nil
}

// Alloc reserves size bytes through the guest allocator.
func (g *GuestMemory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	results, err := g.allocate.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocate returned no results")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate of %d bytes failed", size)
	}
	return ptr, nil
}

// Free returns a buffer to the guest allocator.
func (g *GuestMemory) Free(ctx context.Context, ptr, size uint32) error {
	if ptr == 0 || size == 0 {
		return nil
	}
	if _, err := g.deallocate.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return fmt.Errorf("guest deallocate: %w", err)
	}
	return nil
}

// Read copies length bytes starting at ptr.
func (g *GuestMemory) Read(ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := g.mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read of %d bytes at 0x%x is out of range (memory size %d)", length, ptr, g.mem.Size())
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// Write copies data to ptr.
func (g *GuestMemory) Write(ptr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !g.mem.Write(ptr, data) {
		return fmt.Errorf("write of %d bytes at 0x%x is out of range (memory size %d)", len(data), ptr, g.mem.Size())
	}
	return nil
}

// WriteNew allocates a guest buffer holding data.
func (g *GuestMemory) WriteNew(ctx context.Context, data []byte) (uint32, error) {
	ptr, err := g.Alloc(ctx, uint32(len(data))) //nolint:gosec // G115: bounded by the request limit
	if err != nil {
		return 0, err
	}
	if err := g.Write(ptr, data); err != nil {
		_ = g.Free(ctx, ptr, uint32(len(data))) //nolint:gosec // G115: bounded by the request limit
		return 0, err
	}
	return ptr, nil
}
