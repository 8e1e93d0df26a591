package wazero

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Asyncify states as reported by asyncify_get_state.
const (
	asyncifyNormal    int32 = 0
	asyncifyUnwinding int32 = 1
	asyncifyRewinding int32 = 2
)

// Default location and size of the unwind data region.
const (
	DefaultAsyncifyDataAddr  uint32 = 16
	DefaultAsyncifyStackSize uint32 = 1024
)

// Asyncify drives the Binaryen asyncify protocol (wasm-opt --asyncify).
//
// Guests that are not instrumented still work: they return from their entry
// export on their own when they observe the unwinding state, and re-enter
// the suspended invoke when they observe rewinding. The state is then only
// tracked on the host.
//
// Memory layout at dataAddr:
//   - [0:4] stack pointer (grows upward from dataAddr+8)
//   - [4:8] stack end
//   - [8:stackSize] stack data
type Asyncify struct {
	exports struct {
		getState    api.Function
		startUnwind api.Function
		stopUnwind  api.Function
		startRewind api.Function
		stopRewind  api.Function
	}
	memory       api.Memory
	mu           sync.Mutex
	state        int32
	dataAddr     uint32
	stackSize    uint32
	instrumented bool
}

// AsyncifyOption configures an Asyncify.
type AsyncifyOption func(*Asyncify)

// WithStackSize sets the size of the unwind stack.
func WithStackSize(size uint32) AsyncifyOption {
	return func(a *Asyncify) {
		a.stackSize = size
	}
}

// WithDataAddr sets the address of the unwind data region.
func WithDataAddr(addr uint32) AsyncifyOption {
	return func(a *Asyncify) {
		a.dataAddr = addr
	}
}

// NewAsyncify creates an Asyncify in the normal state.
func NewAsyncify(opts ...AsyncifyOption) *Asyncify {
	a := &Asyncify{
		dataAddr:  DefaultAsyncifyDataAddr,
		stackSize: DefaultAsyncifyStackSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init binds a to an instantiated module.
func (a *Asyncify) Init(mod api.Module) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.exports.getState = mod.ExportedFunction("asyncify_get_state")
	a.exports.startUnwind = mod.ExportedFunction("asyncify_start_unwind")
	a.exports.stopUnwind = mod.ExportedFunction("asyncify_stop_unwind")
	a.exports.startRewind = mod.ExportedFunction("asyncify_start_rewind")
	a.exports.stopRewind = mod.ExportedFunction("asyncify_stop_rewind")

	a.instrumented = a.exports.getState != nil
	if !a.instrumented {
		Logger().Debug("asyncify: module is not instrumented, tracking state on the host")
		return nil
	}

	a.memory = mod.Memory()
	if a.memory == nil {
		return fmt.Errorf("asyncify: module has no memory")
	}

	stackPtr := a.dataAddr + 8
	stackEnd := stackPtr + a.stackSize

	if !a.memory.WriteUint32Le(a.dataAddr, stackPtr) {
		return fmt.Errorf("asyncify: failed to write stack pointer")
	}
	if !a.memory.WriteUint32Le(a.dataAddr+4, stackEnd) {
		return fmt.Errorf("asyncify: failed to write stack end")
	}
	return nil
}

// Instrumented reports whether the module exports the asyncify functions.
func (a *Asyncify) Instrumented() bool {
	return a.instrumented
}

// SuspendState maps the asyncify state to the bridge suspension state.
func (a *Asyncify) SuspendState() entities.SuspendState {
	switch atomic.LoadInt32(&a.state) {
	case asyncifyUnwinding:
		return entities.SuspendUnwinding
	case asyncifyRewinding:
		return entities.SuspendRewinding
	default:
		return entities.SuspendNormal
	}
}

func (a *Asyncify) IsNormal() bool {
	return atomic.LoadInt32(&a.state) == asyncifyNormal
}

func (a *Asyncify) IsUnwinding() bool {
	return atomic.LoadInt32(&a.state) == asyncifyUnwinding
}

func (a *Asyncify) IsRewinding() bool {
	return atomic.LoadInt32(&a.state) == asyncifyRewinding
}

func (a *Asyncify) StartUnwind(ctx context.Context) error {
	return a.transition(ctx, a.exports.startUnwind, asyncifyUnwinding, uint64(a.dataAddr))
}

func (a *Asyncify) StopUnwind(ctx context.Context) error {
	return a.transition(ctx, a.exports.stopUnwind, asyncifyNormal)
}

func (a *Asyncify) StartRewind(ctx context.Context) error {
	return a.transition(ctx, a.exports.startRewind, asyncifyRewinding, uint64(a.dataAddr))
}

func (a *Asyncify) StopRewind(ctx context.Context) error {
	return a.transition(ctx, a.exports.stopRewind, asyncifyNormal)
}

func (a *Asyncify) transition(ctx context.Context, fn api.Function, to int32, args ...uint64) error {
	if fn != nil {
		if _, err := fn.Call(ctx, args...); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&a.state, to)
	return nil
}

// ResetStack resets the stack pointer. Call before each new run.
func (a *Asyncify) ResetStack() {
	if a.memory == nil {
		return
	}
	stackPtr := a.dataAddr + 8
	if !a.memory.WriteUint32Le(a.dataAddr, stackPtr) {
		Logger().Warn("asyncify: failed to reset stack pointer",
			zap.Uint32("dataAddr", a.dataAddr),
			zap.Uint32("stackPtr", stackPtr))
	}
}
