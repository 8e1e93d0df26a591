package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/hostfuncs"
	wz "github.com/reglet-dev/reglet-bridge/infrastructure/wazero"
)

// Instance is an instantiated guest module. Runs are serialised.
type Instance struct {
	module    api.Module
	asyncify  *wz.Asyncify
	scheduler *wz.Scheduler
	stdout    *BoundedBuffer
	stderr    *BoundedBuffer
	logger    *slog.Logger
	name      string
	regime    entities.Regime
	mu        sync.Mutex
}

// Name returns the name the module was loaded under.
func (i *Instance) Name() string {
	return i.name
}

// Run hands req to the guest run export and returns the completion the guest
// signalled. A request without logic.execution_id is assigned a fresh one.
//
// A guest that returns without signalling yields a RunStatusAbandoned result,
// not an error. Errors are reserved for traps and host faults.
func (i *Instance) Run(ctx context.Context, req entities.InvocationRequest) (entities.RunResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if req.Context.Logic.ExecutionID == "" {
		req.Context.Logic.ExecutionID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return entities.RunResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	sess := wz.NewSession(payload)
	ctx = wz.WithSession(ctx, sess)
	ctx = wz.WithGuestName(ctx, i.name)
	ctx = hostfuncs.WithCompletionSink(ctx, sess)

	start := time.Now()
	suspensions := 0
	run := i.module.ExportedFunction(wz.ExportRun)

	if i.scheduler != nil {
		ctx = wz.WithAsyncify(ctx, i.asyncify)
		ctx = wz.WithScheduler(ctx, i.scheduler)
		_, err = i.scheduler.Run(ctx, run)
		suspensions = i.scheduler.Suspensions()
	} else {
		_, err = run.Call(ctx)
	}
	if err != nil {
		i.logger.ErrorContext(ctx, "host: guest run failed",
			"guest", i.name,
			"execution_id", req.Context.Logic.ExecutionID,
			"error", err)
		return entities.RunResult{}, fmt.Errorf("guest %q: %w", i.name, err)
	}

	calls, casts := sess.Counts()
	md := entities.NewRunMetadata(start, time.Now()).
		WithExecutionID(req.Context.Logic.ExecutionID).
		WithRegime(i.regime)
	md.HostCalls = calls + casts
	md.Suspensions = suspensions

	resp, ok := sess.Completion()
	if !ok {
		i.logger.WarnContext(ctx, "host: guest returned without signalling completion",
			"guest", i.name,
			"execution_id", req.Context.Logic.ExecutionID)
	}
	return entities.NewRunResult(resp, ok).WithMetadata(md), nil
}

// Stdout returns what the guest wrote to stdout, truncated to
// DefaultMaxOutputSize.
func (i *Instance) Stdout() string {
	return i.stdout.String()
}

// Stderr returns what the guest wrote to stderr, truncated to
// DefaultMaxOutputSize.
func (i *Instance) Stderr() string {
	return i.stderr.String()
}

// Close closes the guest module.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
