// Package bridgetest provides a scriptable in-memory host for testing guest
// logic and the bridge itself under every execution regime.
//
// A Host implements the complete foreign-boundary contract, including the
// suspension control of the cooperative regime, on top of a native slab
// arena. It records every call, counts every primitive and can inject faults.
package bridgetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/infrastructure/native"
)

// Handler produces the raw bytes the host returns for one call. Returning
// nil or an empty slice models an empty result.
type Handler func(params json.RawMessage, inv entities.ContextEnvelope) []byte

// Call is a recorded host call.
type Call struct {
	Action  string
	Params  json.RawMessage
	Context entities.ContextEnvelope
	Cast    bool
}

// Counts tallies the primitive operations a Host served.
type Counts struct {
	Calls         int
	Casts         int
	ResultSizes   int
	ResultFetches int
	StagedReads   int
	Clears        int
	ContextReads  int
	StopRewinds   int
	StateReads    int
}

// Host is a scriptable fake of the host side of the bridge.
type Host struct {
	*native.Substrate

	handlers map[string]Handler
	fallback Handler
	calls    []Call
	counts   Counts

	state         entities.SuspendState
	suspendOnCall bool
	readFaults    int
	callErr       error
	callPanic     any
	stageErr      error
	casting       bool

	mu sync.Mutex
}

var (
	_ ports.Substrate = (*Host)(nil)
	_ ports.Suspender = (*Host)(nil)
)

// Option configures a Host.
type Option func(*hostConfig)

type hostConfig struct {
	arenaSize     uint32
	payload       []byte
	handlers      map[string]Handler
	fallback      Handler
	suspendOnCall bool
}

// WithArenaSize sets the size of the backing arena.
func WithArenaSize(size uint32) Option {
	return func(c *hostConfig) {
		c.arenaSize = size
	}
}

// WithPayload sets the initial payload served through the context source.
func WithPayload(payload string) Option {
	return func(c *hostConfig) {
		c.payload = []byte(payload)
	}
}

// WithHandler scripts the reply for one action.
func WithHandler(action string, h Handler) Option {
	return func(c *hostConfig) {
		c.handlers[action] = h
	}
}

// WithFallback scripts the reply for actions without a handler. By default
// unknown actions fail.
func WithFallback(h Handler) Option {
	return func(c *hostConfig) {
		c.fallback = h
	}
}

// WithSuspendOnCall makes every blocking call issued in the normal state
// start an unwind, as an asyncified substrate does.
func WithSuspendOnCall() Option {
	return func(c *hostConfig) {
		c.suspendOnCall = true
	}
}

// New creates a Host.
func New(opts ...Option) *Host {
	cfg := hostConfig{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Host{
		handlers:      cfg.handlers,
		fallback:      cfg.fallback,
		state:         entities.SuspendNormal,
		suspendOnCall: cfg.suspendOnCall,
	}
	h.Substrate = native.NewSubstrate(context.Background(), h,
		native.WithArena(native.NewSlabArena(cfg.arenaSize)),
		native.WithPayload(cfg.payload),
	)
	return h
}

// Invoke implements ports.Dispatcher.
func (h *Host) Invoke(_ context.Context, action string, params []byte, inv entities.ContextEnvelope) []byte {
	h.mu.Lock()
	handler, ok := h.handlers[action]
	if !ok {
		handler = h.fallback
	}
	h.calls = append(h.calls, Call{
		Action:  action,
		Params:  append(json.RawMessage(nil), params...),
		Context: inv,
		Cast:    h.casting,
	})
	h.mu.Unlock()

	if handler == nil {
		return Raw(entities.Failure("unknown host action: " + action))(params, inv)
	}
	return handler(params, inv)
}

// Call implements ports.HostCaller.
func (h *Host) Call(action, params, lctx entities.Handle) error {
	h.mu.Lock()
	h.counts.Calls++
	err, p := h.callErr, h.callPanic
	h.callErr, h.callPanic = nil, nil
	h.mu.Unlock()

	if p != nil {
		panic(p)
	}
	if err != nil {
		return err
	}
	if err := h.Substrate.Call(action, params, lctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.suspendOnCall && h.state == entities.SuspendNormal {
		h.state = entities.SuspendUnwinding
	}
	return nil
}

// Cast implements ports.HostCaller.
func (h *Host) Cast(action, params, lctx entities.Handle) error {
	h.mu.Lock()
	h.counts.Casts++
	h.casting = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.casting = false
		h.mu.Unlock()
	}()
	return h.Substrate.Cast(action, params, lctx)
}

// ReadString implements ports.Arena, honouring injected read faults.
func (h *Host) ReadString(offset, length uint32) (string, error) {
	h.mu.Lock()
	if h.readFaults > 0 {
		h.readFaults--
		h.mu.Unlock()
		return "", fmt.Errorf("bridgetest: injected read fault at 0x%x+%d", offset, length)
	}
	h.mu.Unlock()
	return h.Substrate.ReadString(offset, length)
}

// ExecutionResultSize implements ports.ResultFetcher.
func (h *Host) ExecutionResultSize() (uint32, error) {
	h.count(func(c *Counts) { c.ResultSizes++ })
	return h.Substrate.ExecutionResultSize()
}

// ExecutionResult implements ports.ResultFetcher.
func (h *Host) ExecutionResult(dest uint32) error {
	h.count(func(c *Counts) { c.ResultFetches++ })
	return h.Substrate.ExecutionResult(dest)
}

// ResponsePtr implements ports.ResponseStage.
func (h *Host) ResponsePtr() (uint32, error) {
	h.mu.Lock()
	h.counts.StagedReads++
	err := h.stageErr
	h.stageErr = nil
	h.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return h.Substrate.ResponsePtr()
}

// ClearResponseBuffer implements ports.ResponseStage.
func (h *Host) ClearResponseBuffer() error {
	h.count(func(c *Counts) { c.Clears++ })
	return h.Substrate.ClearResponseBuffer()
}

// ContextSize implements ports.ContextSource.
func (h *Host) ContextSize() (uint32, error) {
	h.count(func(c *Counts) { c.ContextReads++ })
	return h.Substrate.ContextSize()
}

// SuspendState implements ports.Suspender.
func (h *Host) SuspendState() entities.SuspendState {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.StateReads++
	return h.state
}

// StopRewind implements ports.Suspender.
func (h *Host) StopRewind() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts.StopRewinds++
	if h.state != entities.SuspendRewinding {
		return fmt.Errorf("bridgetest: stop_rewind in state %s", h.state)
	}
	h.state = entities.SuspendNormal
	return nil
}

// Rewind plays the outer driver after an unwind: the stack is restored and
// the suspended invoke is about to be re-entered.
func (h *Host) Rewind() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != entities.SuspendUnwinding {
		return errors.New("bridgetest: rewind without a preceding unwind")
	}
	h.state = entities.SuspendRewinding
	return nil
}

// SetSuspendState forces the suspension state.
func (h *Host) SetSuspendState(s entities.SuspendState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// SuspendOnCall switches the unwind-on-call behaviour of WithSuspendOnCall.
func (h *Host) SuspendOnCall(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.suspendOnCall = on
}

// FailNextCall makes the next blocking call primitive fail with err.
func (h *Host) FailNextCall(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callErr = err
}

// PanicNextCall makes the next blocking call primitive panic with v.
func (h *Host) PanicNextCall(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callPanic = v
}

// FailNextStagedRead makes the next read of the staged response pointer
// fail with err.
func (h *Host) FailNextStagedRead(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stageErr = err
}

// FailReads makes the next n arena reads fail.
func (h *Host) FailReads(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readFaults = n
}

// Handle scripts or replaces the reply for one action.
func (h *Host) Handle(action string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[action] = handler
}

// Calls returns the recorded calls in issue order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CallsTo returns the recorded calls of one action.
func (h *Host) CallsTo(action string) []Call {
	var out []Call
	for _, c := range h.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Counts returns the primitive counters.
func (h *Host) Counts() Counts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts
}

// Arena returns the arena accounting.
func (h *Host) Arena() native.ArenaStats {
	return h.Stats()
}

func (h *Host) count(fn func(*Counts)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.counts)
}
