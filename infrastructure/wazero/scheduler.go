package wazero

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// PendingOp is a host operation yielded by a suspended guest. It runs while
// the guest stack is unwound.
type PendingOp interface {
	Execute(ctx context.Context) error
}

// PendingOpFunc adapts a function to PendingOp.
type PendingOpFunc func(ctx context.Context) error

// Execute implements PendingOp.
func (f PendingOpFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

type StepStatus int

const (
	StepContinue StepStatus = iota // yielded an operation, expects resume
	StepDone                       // execution complete
)

type StepResult struct {
	PendingOp PendingOp
	Results   []uint64
	Status    StepStatus
}

// ErrNoPendingOp is returned when a guest unwinds without yielding an
// operation.
var ErrNoPendingOp = errors.New("scheduler: no pending operation after unwind")

// Scheduler runs a guest export to completion, executing the operations it
// yields between unwind and rewind.
type Scheduler struct {
	fn          api.Function
	pendingOp   PendingOp
	asyncify    *Asyncify
	args        []uint64
	suspensions int
	initialized bool
}

// NewScheduler creates a Scheduler over asyncify.
func NewScheduler(asyncify *Asyncify) *Scheduler {
	return &Scheduler{asyncify: asyncify}
}

// SetPending records the operation of the current suspension.
func (s *Scheduler) SetPending(op PendingOp) {
	s.pendingOp = op
}

// Suspensions returns the number of suspensions since the last Execute.
func (s *Scheduler) Suspensions() int {
	return s.suspensions
}

// Execute prepares a run of fn. Call Step to advance.
func (s *Scheduler) Execute(_ context.Context, fn api.Function, args ...uint64) error {
	if !s.asyncify.IsNormal() {
		return fmt.Errorf("scheduler: asyncify not in normal state")
	}
	s.fn = fn
	s.args = args
	s.pendingOp = nil
	s.suspensions = 0
	s.initialized = true
	s.asyncify.ResetStack()
	return nil
}

// Step advances the run. Pass resume=false on the first step and true once
// the yielded operation has been executed.
func (s *Scheduler) Step(ctx context.Context, resume bool) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if !s.initialized {
		return StepResult{}, fmt.Errorf("scheduler: call Execute first")
	}

	if resume {
		if err := s.asyncify.StartRewind(ctx); err != nil {
			return StepResult{}, fmt.Errorf("scheduler: start rewind: %w", err)
		}
	}

	results, callErr := s.fn.Call(ctx, s.args...)

	if s.asyncify.IsUnwinding() {
		if err := s.asyncify.StopUnwind(ctx); err != nil {
			return StepResult{}, fmt.Errorf("scheduler: stop unwind: %w", err)
		}
		if s.pendingOp == nil {
			return StepResult{}, ErrNoPendingOp
		}
		op := s.pendingOp
		s.pendingOp = nil
		s.suspensions++
		return StepResult{Status: StepContinue, PendingOp: op}, nil
	}

	if callErr != nil {
		return StepResult{}, callErr
	}

	if !s.asyncify.IsNormal() {
		return StepResult{}, fmt.Errorf("scheduler: guest returned while %s", s.asyncify.SuspendState())
	}

	s.initialized = false
	return StepResult{Status: StepDone, Results: results}, nil
}

// Reset abandons the current run.
func (s *Scheduler) Reset() {
	s.fn = nil
	s.args = nil
	s.pendingOp = nil
	s.initialized = false
}

// Run executes fn with an internal event loop over Execute and Step.
func (s *Scheduler) Run(ctx context.Context, fn api.Function, args ...uint64) ([]uint64, error) {
	if err := s.Execute(ctx, fn, args...); err != nil {
		return nil, err
	}
	defer s.Reset()

	resume := false
	for {
		sr, err := s.Step(ctx, resume)
		if err != nil {
			return nil, err
		}
		if sr.Status == StepDone {
			return sr.Results, nil
		}

		if err := sr.PendingOp.Execute(ctx); err != nil {
			Logger().Warn("scheduler: pending operation failed", zap.Error(err))
			return nil, fmt.Errorf("scheduler: pending operation: %w", err)
		}
		resume = true
	}
}

type ctxKeyScheduler struct{}
type ctxKeyAsyncify struct{}

// WithScheduler attaches s to ctx.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, ctxKeyScheduler{}, s)
}

// SchedulerFrom returns the scheduler attached to ctx, or nil.
func SchedulerFrom(ctx context.Context) *Scheduler {
	s, _ := ctx.Value(ctxKeyScheduler{}).(*Scheduler)
	return s
}

// WithAsyncify attaches a to ctx.
func WithAsyncify(ctx context.Context, a *Asyncify) context.Context {
	return context.WithValue(ctx, ctxKeyAsyncify{}, a)
}

// AsyncifyFrom returns the asyncify driver attached to ctx, or nil.
func AsyncifyFrom(ctx context.Context) *Asyncify {
	a, _ := ctx.Value(ctxKeyAsyncify{}).(*Asyncify)
	return a
}

// Suspend registers op and starts unwinding. Called by host functions.
func Suspend(ctx context.Context, op PendingOp) error {
	sched := SchedulerFrom(ctx)
	async := AsyncifyFrom(ctx)
	if sched == nil || async == nil {
		return fmt.Errorf("suspend: scheduler or asyncify not in context")
	}

	sched.SetPending(op)
	return async.StartUnwind(ctx)
}
