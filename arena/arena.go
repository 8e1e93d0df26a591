// Package arena adapts the raw foreign-memory contract into the handle-based
// operations the bridge uses to move bytes and UTF-8 text across the boundary.
package arena

import (
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// Adapter owns the contract for requesting and releasing byte ranges in a
// foreign arena.
type Adapter struct {
	arena  ports.Arena
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used to report absorbed boundary faults.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// New creates an Adapter over the given arena.
func New(arena ports.Arena, opts ...Option) *Adapter {
	a := &Adapter{arena: arena, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate requests size bytes. A zero size yields a zero-length handle
// without a foreign call.
func (a *Adapter) Allocate(size uint32) (entities.Handle, error) {
	if size == 0 {
		return entities.Handle{}, nil
	}
	offset, err := a.arena.Alloc(size)
	if err != nil {
		return entities.Handle{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "allocate", err)
	}
	return entities.Handle{Offset: offset, Length: size}, nil
}

// Release returns the bytes of h to the arena. It must be called exactly once
// per allocated handle. Zero-length handles are a no-op.
func (a *Adapter) Release(h entities.Handle) {
	if h.IsZero() {
		return
	}
	if err := a.arena.Dealloc(h.Offset, h.Length); err != nil {
		a.logger.Error("arena: release failed", "handle", h.String(), "error", err)
	}
}

// WriteText writes text as UTF-8 starting at h.Offset.
func (a *Adapter) WriteText(h entities.Handle, text string) error {
	if len(text) > int(h.Length) {
		return fmt.Errorf("arena: text of %d bytes does not fit %s", len(text), h)
	}
	if len(text) == 0 {
		return nil
	}
	if err := a.arena.WriteString(h.Offset, text); err != nil {
		a.logger.Error("arena: write failed", "handle", h.String(), "error", err)
		return bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "write", err)
	}
	return nil
}

// ReadBytes reads exactly h.Length bytes from h.Offset.
// A zero-length handle returns an empty slice without a foreign call.
// A fault at the boundary is logged and downgraded to an empty slice; callers
// already hold a length expectation and surface the mismatch themselves.
func (a *Adapter) ReadBytes(h entities.Handle) []byte {
	if h.IsZero() {
		return []byte{}
	}
	s, err := a.arena.ReadString(h.Offset, h.Length)
	if err != nil {
		a.logger.Warn("arena: read failed, returning empty result", "handle", h.String(), "error", err)
		return []byte{}
	}
	return []byte(s)
}

// TextToHandle allocates a buffer holding the UTF-8 bytes of text.
// This is the only allocation path for outbound strings.
func (a *Adapter) TextToHandle(text string) (entities.Handle, error) {
	h, err := a.Allocate(uint32(len(text))) //nolint:gosec // G115: wasm32 buffers are bounded by the arena
	if err != nil {
		return entities.Handle{}, err
	}
	if err := a.WriteText(h, text); err != nil {
		a.Release(h)
		return entities.Handle{}, err
	}
	return h, nil
}

// Scope collects handles and releases each of them exactly once on Close.
//
//	scope := adapter.Scope()
//	defer scope.Close()
type Scope struct {
	adapter *Adapter
	handles []entities.Handle
	closed  bool
}

// Scope starts a new release scope.
func (a *Adapter) Scope() *Scope {
	return &Scope{adapter: a}
}

// Text allocates text through TextToHandle and tracks the handle.
func (s *Scope) Text(text string) (entities.Handle, error) {
	h, err := s.adapter.TextToHandle(text)
	if err != nil {
		return entities.Handle{}, err
	}
	s.Track(h)
	return h, nil
}

// Allocate allocates size bytes and tracks the handle.
func (s *Scope) Allocate(size uint32) (entities.Handle, error) {
	h, err := s.adapter.Allocate(size)
	if err != nil {
		return entities.Handle{}, err
	}
	s.Track(h)
	return h, nil
}

// Track adds a handle obtained elsewhere to the scope.
func (s *Scope) Track(h entities.Handle) {
	if h.IsZero() {
		return
	}
	s.handles = append(s.handles, h)
}

// Detach stops tracking every handle and returns them. Ownership passes to
// the caller (or the host).
func (s *Scope) Detach() []entities.Handle {
	hs := s.handles
	s.handles = nil
	return hs
}

// Close releases every tracked handle. Calling Close again is a no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, h := range s.handles {
		s.adapter.Release(h)
	}
	s.handles = nil
}
