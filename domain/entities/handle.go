package entities

import "fmt"

// Handle is a logical reference into the foreign arena.
// A handle with Length == 0 denotes "no data" and must never be dereferenced.
type Handle struct {
	Offset uint32
	Length uint32
}

// IsZero reports whether the handle carries no data.
func (h Handle) IsZero() bool {
	return h.Length == 0
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return fmt.Sprintf("handle(0x%x+%d)", h.Offset, h.Length)
}
