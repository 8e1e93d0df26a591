package wazero

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerContext() (context.Context, *Scheduler, *Asyncify) {
	a := NewAsyncify()
	s := NewScheduler(a)
	return WithScheduler(WithAsyncify(context.Background(), a), s), s, a
}

func TestScheduler_RunsToCompletion(t *testing.T) {
	ctx, sched, async := schedulerContext()

	var executed, entries int
	run := &fakeFunction{call: func(ctx context.Context, _ ...uint64) ([]uint64, error) {
		entries++
		switch {
		case async.IsRewinding():
			require.NoError(t, async.StopRewind(ctx))
			return []uint64{42}, nil
		default:
			op := PendingOpFunc(func(context.Context) error {
				executed++
				return nil
			})
			require.NoError(t, Suspend(ctx, op))
			return nil, nil
		}
	}}

	results, err := sched.Run(ctx, run)

	require.NoError(t, err)
	assert.Equal(t, []uint64{42}, results)
	assert.Equal(t, 2, entries)
	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, sched.Suspensions())
	assert.True(t, async.IsNormal())
}

func TestScheduler_WithoutSuspension(t *testing.T) {
	ctx, sched, _ := schedulerContext()
	run := &fakeFunction{call: func(context.Context, ...uint64) ([]uint64, error) {
		return []uint64{7}, nil
	}}

	results, err := sched.Run(ctx, run)

	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, results)
	assert.Zero(t, sched.Suspensions())
}

func TestScheduler_UnwindWithoutOperation(t *testing.T) {
	ctx, sched, async := schedulerContext()
	run := &fakeFunction{call: func(ctx context.Context, _ ...uint64) ([]uint64, error) {
		return nil, async.StartUnwind(ctx)
	}}

	_, err := sched.Run(ctx, run)

	assert.ErrorIs(t, err, ErrNoPendingOp)
}

func TestScheduler_PendingOperationFails(t *testing.T) {
	ctx, sched, _ := schedulerContext()
	boom := errors.New("boom")
	run := &fakeFunction{call: func(ctx context.Context, _ ...uint64) ([]uint64, error) {
		return nil, Suspend(ctx, PendingOpFunc(func(context.Context) error { return boom }))
	}}

	_, err := sched.Run(ctx, run)

	assert.ErrorIs(t, err, boom)
}

func TestScheduler_GuestLeftRewinding(t *testing.T) {
	ctx, sched, async := schedulerContext()
	run := &fakeFunction{call: func(ctx context.Context, _ ...uint64) ([]uint64, error) {
		if async.IsRewinding() {
			// returns without reaching the suspended call
			return nil, nil
		}
		return nil, Suspend(ctx, PendingOpFunc(func(context.Context) error { return nil }))
	}}

	_, err := sched.Run(ctx, run)

	assert.ErrorContains(t, err, "guest returned while rewinding")
}

func TestScheduler_StepRequiresExecute(t *testing.T) {
	_, sched, _ := schedulerContext()

	_, err := sched.Step(context.Background(), false)

	assert.ErrorContains(t, err, "call Execute first")
}

func TestScheduler_CancelledContext(t *testing.T) {
	ctx, sched, _ := schedulerContext()
	run := &fakeFunction{call: func(context.Context, ...uint64) ([]uint64, error) {
		return nil, nil
	}}
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := sched.Run(ctx, run)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuspend_RequiresScheduler(t *testing.T) {
	err := Suspend(context.Background(), PendingOpFunc(func(context.Context) error { return nil }))

	assert.Error(t, err)
}
