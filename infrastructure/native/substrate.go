package native

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// Substrate implements ports.Substrate in-process on top of a SlabArena.
// Blocking calls are dispatched synchronously, so the substrate never
// suspends.
type Substrate struct {
	*SlabArena

	ctx        context.Context
	dispatcher ports.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	pending []byte
	staged  *entities.Handle
	payload []byte
	calls   int
	casts   int
}

var _ ports.Substrate = (*Substrate)(nil)

// Option configures a Substrate.
type Option func(*Substrate)

// WithArena uses an existing arena instead of a fresh default one.
func WithArena(a *SlabArena) Option {
	return func(s *Substrate) {
		s.SlabArena = a
	}
}

// WithPayload sets the initial payload served through ContextSize/Context.
func WithPayload(payload []byte) Option {
	return func(s *Substrate) {
		s.payload = payload
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Substrate) {
		s.logger = l
	}
}

// NewSubstrate creates a substrate that dispatches calls to d under ctx.
func NewSubstrate(ctx context.Context, d ports.Dispatcher, opts ...Option) *Substrate {
	s := &Substrate{
		ctx:        ctx,
		dispatcher: d,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.SlabArena == nil {
		s.SlabArena = NewSlabArena(0)
	}
	return s
}

// request reads the three argument buffers of a call.
func (s *Substrate) request(action, params, lctx entities.Handle) (string, []byte, entities.ContextEnvelope, error) {
	var inv entities.ContextEnvelope

	name, err := s.readHandle(action)
	if err != nil {
		return "", nil, inv, fmt.Errorf("read action: %w", err)
	}
	rawParams, err := s.readHandle(params)
	if err != nil {
		return "", nil, inv, fmt.Errorf("read params: %w", err)
	}
	rawCtx, err := s.readHandle(lctx)
	if err != nil {
		return "", nil, inv, fmt.Errorf("read context: %w", err)
	}
	if rawCtx != "" {
		if err := json.Unmarshal([]byte(rawCtx), &inv); err != nil {
			return "", nil, inv, fmt.Errorf("decode context: %w", err)
		}
	}
	return name, []byte(rawParams), inv, nil
}

func (s *Substrate) readHandle(h entities.Handle) (string, error) {
	if h.IsZero() {
		return "", nil
	}
	return s.ReadString(h.Offset, h.Length)
}

// Call implements ports.HostCaller. The response becomes the pending result.
func (s *Substrate) Call(action, params, lctx entities.Handle) error {
	name, rawParams, inv, err := s.request(action, params, lctx)
	if err != nil {
		return err
	}

	resp := s.dispatcher.Invoke(s.ctx, name, rawParams, inv)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.pending = resp
	s.staged = nil
	return nil
}

// Cast implements ports.HostCaller. The argument buffers are owned by the
// substrate from here on and are released once read.
func (s *Substrate) Cast(action, params, lctx entities.Handle) error {
	name, rawParams, inv, err := s.request(action, params, lctx)
	for _, h := range []entities.Handle{action, params, lctx} {
		if h.IsZero() {
			continue
		}
		if derr := s.Dealloc(h.Offset, h.Length); derr != nil {
			s.logger.Warn("native: release of cast buffer failed", "handle", h.String(), "error", derr)
		}
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.casts++
	s.mu.Unlock()

	resp := s.dispatcher.Invoke(s.ctx, name, rawParams, inv)
	var env entities.Response
	if json.Unmarshal(resp, &env) == nil && !env.OK && env.Error != nil {
		s.logger.Warn("native: fire-and-forget call failed", "action", name, "error", env.Error.Message)
	}
	return nil
}

// ExecutionResultSize implements ports.ResultFetcher.
func (s *Substrate) ExecutionResultSize() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.pending)), nil //nolint:gosec // G115: results are bounded by the arena
}

// ExecutionResult implements ports.ResultFetcher. The pending result is
// consumed.
func (s *Substrate) ExecutionResult(dest uint32) error {
	s.mu.Lock()
	data := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	return s.Write(dest, data)
}

// ResponsePtr implements ports.ResponseStage. The pending result is copied
// into a fresh arena allocation on first use; the reader owns it.
func (s *Substrate) ResponsePtr() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged != nil {
		return s.staged.Offset, nil
	}
	if len(s.pending) == 0 {
		return 0, nil
	}
	size := uint32(len(s.pending)) //nolint:gosec // G115: results are bounded by the arena
	offset, err := s.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("stage response: %w", err)
	}
	if err := s.Write(offset, s.pending); err != nil {
		return 0, fmt.Errorf("stage response: %w", err)
	}
	s.staged = &entities.Handle{Offset: offset, Length: size}
	return offset, nil
}

// ResponseLen implements ports.ResponseStage.
func (s *Substrate) ResponseLen() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.pending)), nil //nolint:gosec // G115: results are bounded by the arena
}

// ClearResponseBuffer implements ports.ResponseStage.
func (s *Substrate) ClearResponseBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.staged = nil
	return nil
}

// ContextSize implements ports.ContextSource.
func (s *Substrate) ContextSize() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.payload)), nil //nolint:gosec // G115: payloads are bounded by the arena
}

// Context implements ports.ContextSource.
func (s *Substrate) Context(dest uint32) error {
	s.mu.Lock()
	data := s.payload
	s.mu.Unlock()
	if len(data) == 0 {
		return nil
	}
	return s.Write(dest, data)
}

// SetPayload replaces the initial payload.
func (s *Substrate) SetPayload(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = payload
}

// Calls returns the number of blocking calls served.
func (s *Substrate) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Casts returns the number of fire-and-forget calls served.
func (s *Substrate) Casts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casts
}
