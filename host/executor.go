package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/hostfuncs"
	wz "github.com/reglet-dev/reglet-bridge/infrastructure/wazero"
)

// Executor manages the wazero runtime guests are loaded into.
// LoadModule is safe for concurrent use.
type Executor struct {
	runtime   wazero.Runtime
	registry  *hostfuncs.HandlerRegistry
	programs  *ProgramTable
	delegator *Delegator
	logger    *slog.Logger
	extra     []hostfuncs.HostFuncBundle
	cfg       config.HostConfig
	regime    entities.Regime
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.cfg.Regime == "" {
		e.cfg.Regime = entities.RegimeSynchronous.String()
	}
	e.cfg.Normalize()

	regime, err := e.cfg.ExecutionRegime()
	if err != nil {
		return nil, err
	}
	e.regime = regime

	if e.registry == nil {
		reg, err := e.defaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}
	if e.delegator != nil {
		e.delegator.dispatcher = e.registry
	}

	rtCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(e.cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if _, err := wz.RegisterWithRuntime(ctx, rt, e.registry,
		wz.WithLogger(e.logger),
		wz.WithMaxRequestSize(e.cfg.MaxRequestBytes),
		wz.WithRegime(e.regime),
	); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

func (e *Executor) defaultRegistry() (*hostfuncs.HandlerRegistry, error) {
	opts := []hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(
			hostfuncs.PanicRecoveryMiddleware(),
			hostfuncs.LoggingMiddleware(e.logger),
			hostfuncs.DeadlineMiddleware(),
		),
		hostfuncs.WithBundle(hostfuncs.CoreBundle(e.logger)),
	}
	for _, b := range e.extra {
		opts = append(opts, hostfuncs.WithBundle(b))
	}
	if e.programs != nil {
		e.delegator = NewDelegator(e.programs,
			WithDelegatorLogger(e.logger),
			WithAllowList(e.cfg.Delegation.Programs),
		)
		opts = append(opts, hostfuncs.WithByteHandler(ActionRunDelegated, e.delegator.Handle))
	}
	return hostfuncs.NewRegistry(opts...)
}

// Regime returns the regime guests are instantiated under.
func (e *Executor) Regime() entities.Regime {
	return e.regime
}

// Registry returns the registry serving host actions.
func (e *Executor) Registry() *hostfuncs.HandlerRegistry {
	return e.registry
}

// Close releases resources held by the executor.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadModule compiles and instantiates a guest module.
// The guest must export run, allocate and deallocate.
func (e *Executor) LoadModule(ctx context.Context, name string, wasmBytes []byte) (*Instance, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	inst := &Instance{
		name:   name,
		regime: e.regime,
		logger: e.logger,
		stdout: NewBoundedBuffer(DefaultMaxOutputSize),
		stderr: NewBoundedBuffer(DefaultMaxOutputSize),
	}

	// Module names must be unique within the runtime.
	modCfg := wazero.NewModuleConfig().
		WithName(name + "-" + uuid.NewString()).
		WithStdout(inst.stdout).
		WithStderr(inst.stderr).
		WithSysWalltime().
		WithSysNanotime()

	mod, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	inst.module = mod

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	if mod.ExportedFunction(wz.ExportRun) == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("guest %q does not export %q", name, wz.ExportRun)
	}
	if _, err := wz.NewGuestMemory(mod); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	if e.regime.Kind == entities.RegimeCooperative {
		inst.asyncify = wz.NewAsyncify(
			wz.WithDataAddr(e.cfg.Asyncify.DataAddr),
			wz.WithStackSize(e.cfg.Asyncify.StackSize),
		)
		if err := inst.asyncify.Init(mod); err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
		inst.scheduler = wz.NewScheduler(inst.asyncify)
	}

	return inst, nil
}
