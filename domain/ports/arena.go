package ports

// Arena is the raw contract of the foreign linear memory.
// Offsets and sizes are in bytes. Implementations report faults at the
// boundary as errors; they never panic on an out-of-range access.
type Arena interface {
	// Alloc reserves size bytes and returns their offset.
	Alloc(size uint32) (uint32, error)

	// Dealloc returns a previous allocation to the arena.
	Dealloc(offset, size uint32) error

	// ReadString reads length bytes starting at offset.
	ReadString(offset, length uint32) (string, error)

	// WriteString writes the UTF-8 bytes of text starting at offset.
	WriteString(offset uint32, text string) error
}
