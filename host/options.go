package host

import (
	"log/slog"

	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/hostfuncs"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithHostFunctions serves host actions from registry instead of the default
// one. The registry is used as is: the run_delegated action is only present
// if the caller registered it.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithConfig sets the host configuration. Empty fields get their defaults.
func WithConfig(cfg config.HostConfig) Option {
	return func(e *Executor) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger of the executor and its host functions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithPrograms registers the programs delegated guests may run. It enables
// the run_delegated action on the default registry.
func WithPrograms(programs *ProgramTable) Option {
	return func(e *Executor) {
		e.programs = programs
	}
}

// WithExtraHandlers adds host actions to the default registry.
func WithExtraHandlers(bundle hostfuncs.HostFuncBundle) Option {
	return func(e *Executor) {
		e.extra = append(e.extra, bundle)
	}
}
