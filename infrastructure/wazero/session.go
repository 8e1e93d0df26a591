package wazero

import (
	"context"
	"errors"
	"sync"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// ErrAlreadyCompleted is returned when a guest signals completion twice.
var ErrAlreadyCompleted = errors.New("completion already signalled")

// Session is the host-side state of one guest run.
type Session struct {
	mu         sync.Mutex
	payload    []byte
	result     []byte
	staged     entities.Handle
	completion *entities.Response
	calls      int
	casts      int
}

// NewSession creates a session serving payload as the initial request.
func NewSession(payload []byte) *Session {
	return &Session{payload: payload}
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached to ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Payload returns the initial request.
func (s *Session) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// SetResult records the pending result of a synchronous call.
func (s *Session) SetResult(resp []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.result = resp
}

// Result returns the pending synchronous result.
func (s *Session) Result() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// TakeResult returns and clears the pending synchronous result.
func (s *Session) TakeResult() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.result
	s.result = nil
	return r
}

// Stage records a response written into guest memory for the cooperative
// regime. The guest owns the buffer.
func (s *Session) Stage(h entities.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.staged = h
}

// Staged returns the staged response buffer.
func (s *Session) Staged() entities.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged
}

// ClearStaged empties the staging slot.
func (s *Session) ClearStaged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = entities.Handle{}
}

func (s *Session) countCast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casts++
}

// Complete implements hostfuncs.CompletionSink.
func (s *Session) Complete(_ context.Context, resp entities.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completion != nil {
		return ErrAlreadyCompleted
	}
	s.completion = &resp
	return nil
}

// Completion returns the signalled completion, if any.
func (s *Session) Completion() (entities.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completion == nil {
		return entities.Response{}, false
	}
	return *s.completion, true
}

// Counts returns the number of blocking and fire-and-forget calls served.
func (s *Session) Counts() (calls, casts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.casts
}
