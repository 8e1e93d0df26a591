//go:build wasip1

// Package abi manages the guest side of the WASM linear memory shared with
// the host.
package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// MaxTotalAllocations caps the memory held by tracked allocations.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// memoryManager pins every allocation handed to the host so the Go GC does
// not collect it while the host still refers to it by offset.
var memoryManager = struct {
	sync.Mutex
	ptrs           map[uint32][]byte // ptr -> slice reference
	totalAllocated int
}{
	ptrs: make(map[uint32][]byte),
}

// allocate is the export the host uses to place responses in guest memory.
// It returns 0 when the request cannot be served.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	ptr, err := Alloc(size)
	if err != nil {
		return 0
	}
	return ptr
}

// deallocate is the export the host uses to release buffers it owns, such as
// the arguments of a fire-and-forget call.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	_ = Free(ptr, size)
}

// Alloc reserves size bytes of pinned memory and returns their offset.
func Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	if memoryManager.totalAllocated+int(size) > MaxTotalAllocations {
		return 0, fmt.Errorf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memoryManager.totalAllocated, MaxTotalAllocations)
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0]))) //nolint:gosec // G103,G115: wasm32 pointers

	memoryManager.ptrs[ptr] = buf
	memoryManager.totalAllocated += int(size)
	return ptr, nil
}

// Free unpins an allocation. Untracked offsets are ignored, so a double free
// is harmless. Accounting uses the tracked length, not size.
func Free(ptr, _ uint32) error {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	buf, ok := memoryManager.ptrs[ptr]
	if !ok {
		return nil
	}
	delete(memoryManager.ptrs, ptr)
	memoryManager.totalAllocated -= len(buf)
	if memoryManager.totalAllocated < 0 {
		memoryManager.totalAllocated = 0
	}
	return nil
}

// tracked returns the pinned allocation starting at ptr if it holds at least
// length bytes.
func tracked(ptr, length uint32) ([]byte, error) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	buf, ok := memoryManager.ptrs[ptr]
	if !ok {
		return nil, fmt.Errorf("abi: 0x%x is not a tracked allocation", ptr)
	}
	if uint32(len(buf)) < length { //nolint:gosec // G115: bounded by MaxTotalAllocations
		return nil, fmt.Errorf("abi: access of %d bytes at 0x%x exceeds the %d-byte allocation", length, ptr, len(buf))
	}
	return buf[:length], nil
}

// ReadString copies length bytes starting at ptr.
func ReadString(ptr, length uint32) (string, error) {
	if length == 0 {
		return "", nil
	}
	buf, err := tracked(ptr, length)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteString copies text into the allocation at ptr.
func WriteString(ptr uint32, text string) error {
	if len(text) == 0 {
		return nil
	}
	buf, err := tracked(ptr, uint32(len(text))) //nolint:gosec // G115: bounded by MaxTotalAllocations
	if err != nil {
		return err
	}
	copy(buf, text)
	return nil
}

// FreeAllTracked unpins every allocation. Used during panic recovery and
// between runs.
func FreeAllTracked() {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	clear(memoryManager.ptrs)
	memoryManager.totalAllocated = 0
}

// Stats returns the number of tracked allocations and their total size.
func Stats() (allocations, bytes int) {
	memoryManager.Lock()
	defer memoryManager.Unlock()
	return len(memoryManager.ptrs), memoryManager.totalAllocated
}
