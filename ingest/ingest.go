// Package ingest obtains the initial invocation payload of a program
// instance.
package ingest

import (
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/reglet-dev/reglet-bridge/arena"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// Reader reads the initial payload from a pre-placed slot, when an
// orchestrating layer filled one, or pulls it from the host.
type Reader struct {
	arena     *arena.Adapter
	source    ports.ContextSource
	preplaced *string
	mu        sync.Mutex
}

// NewReader creates a Reader.
func NewReader(a *arena.Adapter, source ports.ContextSource) *Reader {
	return &Reader{arena: a, source: source}
}

// Preplace fills the pre-placed slot. The next ReadInitialPayload consumes it
// without consulting the host.
func (r *Reader) Preplace(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preplaced = &payload
}

// HasPreplaced reports whether the pre-placed slot is filled.
func (r *Reader) HasPreplaced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preplaced != nil
}

// ReadInitialPayload returns the raw request text. An empty string means no
// request is available and must not be parsed.
func (r *Reader) ReadInitialPayload() (string, error) {
	r.mu.Lock()
	if p := r.preplaced; p != nil {
		r.preplaced = nil
		r.mu.Unlock()
		return *p, nil
	}
	r.mu.Unlock()

	size, err := r.source.ContextSize()
	if err != nil {
		return "", bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "context size", err)
	}
	if size == 0 {
		return "", nil
	}

	scope := r.arena.Scope()
	defer scope.Close()

	h, err := scope.Allocate(size)
	if err != nil {
		return "", err
	}
	if err := r.source.Context(h.Offset); err != nil {
		return "", bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "context", err)
	}

	raw := r.arena.ReadBytes(h)
	if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
		return "", bridgeerrors.Wrap(bridgeerrors.KindDecodeFailure, "context", err)
	}
	return string(raw), nil
}
