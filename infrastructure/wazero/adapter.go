package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// DefaultModuleName is the host module guests import the bridge from.
const DefaultModuleName = "reglet_bridge"

// DefaultMaxRequestSize limits a single argument buffer read from guest
// memory.
const DefaultMaxRequestSize = 1 << 20

// Status codes returned by call and cast.
const (
	StatusOK    uint32 = 0
	StatusFault uint32 = 1
)

// Host functions of the bridge module.
const (
	FuncCall                = "call"
	FuncCast                = "cast"
	FuncExecutionResultSize = "getExecutionResultSize"
	FuncExecutionResult     = "getExecutionResult"
	FuncResponsePtr         = "get_response_ptr"
	FuncResponseLen         = "get_response_len"
	FuncClearResponseBuffer = "clear_response_buffer"
	FuncContextSize         = "getContextSize"
	FuncContext             = "getContext"
	FuncSuspendState        = "get_suspend_state"
	FuncStopRewind          = "stop_rewind"
	FuncRegime              = "get_regime"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	Logger *slog.Logger

	// ModuleName is the host module name (default: "reglet_bridge").
	ModuleName string

	// MaxRequestSize limits each argument buffer read from guest memory.
	MaxRequestSize uint32

	// Regime is reported to guests through get_regime.
	Regime entities.Regime
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum size of an argument buffer.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithRegime sets the regime guests are told they run under.
func WithRegime(r entities.Regime) AdapterOption {
	return func(c *AdapterConfig) {
		c.Regime = r
	}
}

// WithLogger sets the logger of the host functions.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = l
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxRequestSize: DefaultMaxRequestSize,
		Regime:         entities.Synchronous(),
		Logger:         slog.Default(),
	}
}

// Bridge implements the host functions of the bridge module.
type Bridge struct {
	dispatcher ports.Dispatcher
	cfg        AdapterConfig
}

// NewBridge creates the host functions over d without registering them.
func NewBridge(d ports.Dispatcher, opts ...AdapterOption) *Bridge {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{dispatcher: d, cfg: cfg}
}

// RegisterWithRuntime instantiates the bridge host module in runtime. Calls
// are dispatched to d.
//
// Every host function expects a Session in its context (see WithSession). In
// the cooperative regime the context also carries the Scheduler and Asyncify
// of the instance; blocking calls then suspend the guest instead of
// dispatching inline.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, d ports.Dispatcher, opts ...AdapterOption) (*Bridge, error) {
	b := NewBridge(d, opts...)

	i32 := api.ValueTypeI32
	args := []api.ValueType{i32, i32, i32, i32, i32, i32}
	none := []api.ValueType{}
	one := []api.ValueType{i32}

	builder := runtime.NewHostModuleBuilder(b.cfg.ModuleName)
	export := func(name string, fn api.GoModuleFunc, params, results []api.ValueType) {
		builder.NewFunctionBuilder().WithGoModuleFunction(fn, params, results).Export(name)
	}

	export(FuncCall, b.call, args, one)
	export(FuncCast, b.cast, args, one)
	export(FuncExecutionResultSize, b.executionResultSize, none, one)
	export(FuncExecutionResult, b.executionResult, one, none)
	export(FuncResponsePtr, b.responsePtr, none, one)
	export(FuncResponseLen, b.responseLen, none, one)
	export(FuncClearResponseBuffer, b.clearResponseBuffer, none, none)
	export(FuncContextSize, b.contextSize, none, one)
	export(FuncContext, b.context, one, none)
	export(FuncSuspendState, b.suspendState, none, one)
	export(FuncStopRewind, b.stopRewind, none, none)
	export(FuncRegime, b.regime, none, one)

	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("failed to instantiate host module %q: %w", b.cfg.ModuleName, err)
	}
	return b, nil
}

type request struct {
	action string
	params []byte
	inv    entities.ContextEnvelope
	bufs   [3]entities.Handle
}

// readRequest reads the three argument buffers of call or cast.
func (b *Bridge) readRequest(g *GuestMemory, stack []uint64) (request, error) {
	var req request
	var raw [3][]byte
	for i := range raw {
		h := entities.Handle{
			Offset: api.DecodeU32(stack[2*i]),
			Length: api.DecodeU32(stack[2*i+1]),
		}
		if h.Length > b.cfg.MaxRequestSize {
			return req, fmt.Errorf("argument %d of %d bytes exceeds the limit of %d bytes", i, h.Length, b.cfg.MaxRequestSize)
		}
		data, err := g.Read(h.Offset, h.Length)
		if err != nil {
			return req, err
		}
		raw[i] = data
		req.bufs[i] = h
	}

	req.action = string(raw[0])
	req.params = raw[1]
	if len(raw[2]) > 0 {
		if err := json.Unmarshal(raw[2], &req.inv); err != nil {
			return req, fmt.Errorf("invalid call context: %w", err)
		}
	}
	if req.action == "" {
		return req, fmt.Errorf("call without an action")
	}
	return req, nil
}

func (b *Bridge) fault(ctx context.Context, mod api.Module, fn string, err error) {
	b.cfg.Logger.ErrorContext(ctx, "wazero: host function failed",
		"guest", GuestName(ctx, mod), "function", fn, "error", err)
}

func (b *Bridge) session(ctx context.Context, mod api.Module, fn string) *Session {
	s := SessionFrom(ctx)
	if s == nil {
		b.fault(ctx, mod, fn, fmt.Errorf("no session in context"))
	}
	return s
}

func (b *Bridge) call(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = api.EncodeU32(b.doCall(ctx, mod, stack))
}

func (b *Bridge) doCall(ctx context.Context, mod api.Module, stack []uint64) uint32 {
	sess := b.session(ctx, mod, FuncCall)
	if sess == nil {
		return StatusFault
	}
	g, err := NewGuestMemory(mod)
	if err != nil {
		b.fault(ctx, mod, FuncCall, err)
		return StatusFault
	}
	req, err := b.readRequest(g, stack)
	if err != nil {
		b.fault(ctx, mod, FuncCall, err)
		return StatusFault
	}

	if SchedulerFrom(ctx) == nil {
		sess.SetResult(b.dispatcher.Invoke(ctx, req.action, req.params, req.inv))
		return StatusOK
	}

	// The response is produced while the guest is unwound and staged into
	// its memory before the rewind.
	op := PendingOpFunc(func(ctx context.Context) error {
		resp := b.dispatcher.Invoke(ctx, req.action, req.params, req.inv)
		if len(resp) == 0 {
			sess.Stage(entities.Handle{})
			return nil
		}
		ptr, err := g.WriteNew(ctx, resp)
		if err != nil {
			return fmt.Errorf("stage response of %s: %w", req.action, err)
		}
		sess.Stage(entities.Handle{Offset: ptr, Length: uint32(len(resp))}) //nolint:gosec // G115: bounded by guest memory
		return nil
	})
	if err := Suspend(ctx, op); err != nil {
		b.fault(ctx, mod, FuncCall, err)
		return StatusFault
	}
	return StatusOK
}

func (b *Bridge) cast(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = api.EncodeU32(b.doCast(ctx, mod, stack))
}

func (b *Bridge) doCast(ctx context.Context, mod api.Module, stack []uint64) uint32 {
	sess := b.session(ctx, mod, FuncCast)
	if sess == nil {
		return StatusFault
	}
	g, err := NewGuestMemory(mod)
	if err != nil {
		b.fault(ctx, mod, FuncCast, err)
		return StatusFault
	}
	req, err := b.readRequest(g, stack)

	// The host owns the argument buffers from here on, read or not.
	for _, h := range req.bufs {
		if ferr := g.Free(ctx, h.Offset, h.Length); ferr != nil {
			b.fault(ctx, mod, FuncCast, ferr)
		}
	}
	if err != nil {
		b.fault(ctx, mod, FuncCast, err)
		return StatusFault
	}

	sess.countCast()
	resp := b.dispatcher.Invoke(ctx, req.action, req.params, req.inv)

	var env entities.Response
	if json.Unmarshal(resp, &env) == nil && !env.OK && env.Error != nil {
		b.cfg.Logger.WarnContext(ctx, "wazero: fire-and-forget call failed",
			"guest", GuestName(ctx, mod), "action", req.action, "error", env.Error.Message)
	}
	return StatusOK
}

func (b *Bridge) executionResultSize(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = 0
	if sess := b.session(ctx, mod, FuncExecutionResultSize); sess != nil {
		stack[0] = api.EncodeU32(uint32(len(sess.Result()))) //nolint:gosec // G115: bounded by guest memory
	}
}

func (b *Bridge) executionResult(ctx context.Context, mod api.Module, stack []uint64) {
	sess := b.session(ctx, mod, FuncExecutionResult)
	if sess == nil {
		return
	}
	dest := api.DecodeU32(stack[0])
	if err := writeTo(mod, dest, sess.TakeResult()); err != nil {
		b.fault(ctx, mod, FuncExecutionResult, err)
	}
}

func (b *Bridge) responsePtr(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = 0
	if sess := b.session(ctx, mod, FuncResponsePtr); sess != nil {
		stack[0] = api.EncodeU32(sess.Staged().Offset)
	}
}

func (b *Bridge) responseLen(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = 0
	if sess := b.session(ctx, mod, FuncResponseLen); sess != nil {
		stack[0] = api.EncodeU32(sess.Staged().Length)
	}
}

func (b *Bridge) clearResponseBuffer(ctx context.Context, mod api.Module, _ []uint64) {
	if sess := b.session(ctx, mod, FuncClearResponseBuffer); sess != nil {
		sess.ClearStaged()
	}
}

func (b *Bridge) contextSize(ctx context.Context, mod api.Module, stack []uint64) {
	stack[0] = 0
	if sess := b.session(ctx, mod, FuncContextSize); sess != nil {
		stack[0] = api.EncodeU32(uint32(len(sess.Payload()))) //nolint:gosec // G115: bounded by the request limit
	}
}

func (b *Bridge) context(ctx context.Context, mod api.Module, stack []uint64) {
	sess := b.session(ctx, mod, FuncContext)
	if sess == nil {
		return
	}
	if err := writeTo(mod, api.DecodeU32(stack[0]), sess.Payload()); err != nil {
		b.fault(ctx, mod, FuncContext, err)
	}
}

func (b *Bridge) suspendState(ctx context.Context, _ api.Module, stack []uint64) {
	state := entities.SuspendNormal
	if a := AsyncifyFrom(ctx); a != nil {
		state = a.SuspendState()
	}
	stack[0] = api.EncodeI32(int32(state))
}

func (b *Bridge) stopRewind(ctx context.Context, mod api.Module, _ []uint64) {
	a := AsyncifyFrom(ctx)
	if a == nil || !a.IsRewinding() {
		b.fault(ctx, mod, FuncStopRewind, fmt.Errorf("stop_rewind outside a rewind"))
		return
	}
	if err := a.StopRewind(ctx); err != nil {
		b.fault(ctx, mod, FuncStopRewind, err)
	}
}

func (b *Bridge) regime(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(b.cfg.Regime.Code())
}

func writeTo(mod api.Module, dest uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !mod.Memory().Write(dest, data) {
		return fmt.Errorf("write of %d bytes at 0x%x is out of range", len(data), dest)
	}
	return nil
}
