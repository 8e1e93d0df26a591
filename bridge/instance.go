package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/reglet-bridge/arena"
	"github.com/reglet-dev/reglet-bridge/delegation"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/ingest"
	"github.com/reglet-dev/reglet-bridge/protocol"
)

// stagePhase tracks an invoke that owns the response staging slot.
type stagePhase int

const (
	stageIdle stagePhase = iota
	stageCalling
	stageSuspended
	stageReading
)

// stagingGuard is held from the moment a cooperative invoke issues its host
// call until the staged response has been cleared. While held, no other
// invoke may start.
type stagingGuard struct {
	action string
	phase  stagePhase
}

func (g stagingGuard) held() bool {
	return g.phase != stageIdle
}

type journalEntry struct {
	action string
	resp   entities.Response
}

// replayJournal records the invokes completed during one cooperative run.
// When the driver re-enters the run after a suspension, invokes before the
// suspended one are answered from the journal in order.
type replayJournal struct {
	entries []journalEntry
	cursor  int
	active  bool
}

// Instance is the bridge state of one guest program instance.
// It is not safe for concurrent invokes; the guest runs a single logical
// thread of control.
type Instance struct {
	substrate ports.Substrate
	suspender ports.Suspender
	arena     *arena.Adapter
	caller    *protocol.Caller
	reader    *ingest.Reader
	channel   *delegation.Channel
	evaluator ports.Evaluator
	logger    *slog.Logger

	staging stagingGuard
	journal replayJournal
	regime  entities.Regime
	mu      sync.Mutex
}

var _ ports.Notifier = (*Instance)(nil)

// New creates an Instance over substrate. The regime is fixed for the
// lifetime of the Instance. The cooperative regime requires a substrate that
// also implements ports.Suspender.
func New(substrate ports.Substrate, opts ...Option) (*Instance, error) {
	cfg := defaultInstanceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.regime.Validate(); err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.KindInvalidRegime, "new", err)
	}

	inst := &Instance{
		substrate: substrate,
		regime:    cfg.regime,
		evaluator: cfg.evaluator,
		logger:    cfg.logger.With("regime", cfg.regime.String()),
		channel:   delegation.NewChannel(),
	}

	if cfg.regime.Kind == entities.RegimeCooperative {
		s, ok := substrate.(ports.Suspender)
		if !ok {
			return nil, bridgeerrors.New(bridgeerrors.KindInvalidRegime, "new", "the cooperative regime needs a substrate with suspension control")
		}
		inst.suspender = s
	}

	inst.arena = arena.New(substrate, arena.WithLogger(inst.logger))
	inst.caller = protocol.NewCaller(inst.arena, substrate)
	inst.reader = ingest.NewReader(inst.arena, substrate)
	if cfg.preplaced != nil {
		inst.reader.Preplace(*cfg.preplaced)
	}
	return inst, nil
}

// Regime returns the execution regime of the instance.
func (i *Instance) Regime() entities.Regime {
	return i.regime
}

// Channel returns the delegation channel of the instance.
func (i *Instance) Channel() *delegation.Channel {
	return i.channel
}

// Evaluator returns the evaluator configured with WithEvaluator, or nil.
func (i *Instance) Evaluator() ports.Evaluator {
	return i.evaluator
}

// Logger returns the instance logger.
func (i *Instance) Logger() *slog.Logger {
	return i.logger
}

// Invoke calls a host action and waits for its response.
//
// A response with OK=false is a successful invoke: the host reported a
// failure, or returned nothing at all (see entities.Response.IsEmptyResult).
// The returned error is reserved for failures of the bridge itself.
//
// In the cooperative regime Invoke may return an error matching
// errors.ErrSuspended. The caller must then return control to the driver
// without further invokes; the driver re-enters the same invoke once the
// host operation has completed.
func (i *Instance) Invoke(ctx context.Context, action string, params any, lctx entities.Context) (entities.Response, error) {
	if err := lctx.ValidateFor(i.regime); err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindInvalidRegime, "invoke "+action, err)
	}

	switch i.regime.Kind {
	case entities.RegimeCooperative:
		return i.invokeCooperative(ctx, action, params, lctx)
	default:
		// Nested invokes of delegated programs are synchronous; delegation
		// only happens at the entry point.
		return i.invokeSynchronous(ctx, action, params, lctx)
	}
}

// InvokeNoWait calls a host action without waiting for a response.
func (i *Instance) InvokeNoWait(ctx context.Context, action string, params any, lctx entities.Context) error {
	return i.caller.CallFireAndForget(ctx, action, params, lctx)
}

// ReadInitialRequest returns the raw inbound request, or "" when there is
// none.
func (i *Instance) ReadInitialRequest() (string, error) {
	return i.reader.ReadInitialPayload()
}

// PreplacePayload sets the payload returned by the next ReadInitialRequest
// unless one is already pre-placed. It reports whether payload was placed.
func (i *Instance) PreplacePayload(payload string) bool {
	if i.reader.HasPreplaced() {
		return false
	}
	i.reader.Preplace(payload)
	return true
}

func (i *Instance) invokeSynchronous(ctx context.Context, action string, params any, lctx entities.Context) (entities.Response, error) {
	if err := i.caller.CallBlocking(ctx, action, params, lctx); err != nil {
		return entities.Response{}, err
	}

	size, err := i.substrate.ExecutionResultSize()
	if err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "result size", err)
	}
	if size == 0 {
		return entities.EmptyResult(), nil
	}

	scope := i.arena.Scope()
	defer scope.Close()

	h, err := scope.Allocate(size)
	if err != nil {
		return entities.Response{}, err
	}
	if err := i.substrate.ExecutionResult(h.Offset); err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "result", err)
	}
	return protocol.DecodeResponse(i.arena.ReadBytes(h))
}

func (i *Instance) invokeCooperative(ctx context.Context, action string, params any, lctx entities.Context) (entities.Response, error) {
	state := i.suspender.SuspendState()

	switch state {
	case entities.SuspendRewinding:
		if resp, ok, err := i.replay(action); ok || err != nil {
			return resp, err
		}
		if err := i.resume(action); err != nil {
			return entities.Response{}, err
		}

	case entities.SuspendNormal:
		if err := i.acquire(action); err != nil {
			return entities.Response{}, err
		}
		if err := i.callStaged(ctx, action, params, lctx); err != nil {
			return entities.Response{}, err
		}
		if i.suspender.SuspendState() == entities.SuspendUnwinding {
			i.setPhase(stageSuspended)
			i.logger.Debug("invoke suspended", "action", action)
			return entities.Response{}, bridgeerrors.New(bridgeerrors.KindSuspended, "invoke "+action, "host operation pending")
		}
		i.setPhase(stageReading)

	default:
		return entities.Response{}, bridgeerrors.New(bridgeerrors.KindUnexpectedRewind, "invoke "+action,
			fmt.Sprintf("invoke entered in suspend state %s", state))
	}

	resp, err := i.readStaged()
	if err == nil {
		i.record(action, resp)
	}
	return resp, err
}

// BeginRun marks the start of a guest run. In the cooperative regime, a run
// started while the substrate is rewinding replays the journal of the
// suspended run; any other start discards it. Other regimes ignore runs.
func (i *Instance) BeginRun() {
	if i.regime.Kind != entities.RegimeCooperative {
		return
	}
	rewinding := i.suspender.SuspendState() == entities.SuspendRewinding

	i.mu.Lock()
	defer i.mu.Unlock()
	if !rewinding {
		i.journal.entries = nil
	}
	i.journal.cursor = 0
	i.journal.active = true
}

// EndRun marks the end of a guest run that was not suspended.
func (i *Instance) EndRun() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.journal = replayJournal{}
}

// replay answers a re-entered invoke from the journal. It reports false once
// the journal is exhausted and the suspended invoke has been reached.
func (i *Instance) replay(action string) (entities.Response, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	j := &i.journal
	if !j.active || j.cursor >= len(j.entries) {
		return entities.Response{}, false, nil
	}
	e := j.entries[j.cursor]
	if e.action != action {
		return entities.Response{}, false, bridgeerrors.New(bridgeerrors.KindUnexpectedRewind, "invoke "+action,
			fmt.Sprintf("replay expected %q", e.action))
	}
	j.cursor++
	return e.resp, true, nil
}

func (i *Instance) record(action string, resp entities.Response) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.journal.active {
		return
	}
	i.journal.entries = append(i.journal.entries, journalEntry{action: action, resp: resp})
	i.journal.cursor = len(i.journal.entries)
}

// acquire takes the staging guard for a first-pass invoke.
func (i *Instance) acquire(action string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.staging.held() {
		return bridgeerrors.New(bridgeerrors.KindStagingBusy, "invoke "+action,
			fmt.Sprintf("response of %q has not been cleared", i.staging.action))
	}
	i.staging = stagingGuard{action: action, phase: stageCalling}
	return nil
}

// resume validates a re-entered invoke and stops the rewind. The host call
// is not issued again.
func (i *Instance) resume(action string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.staging.phase != stageSuspended {
		return bridgeerrors.New(bridgeerrors.KindUnexpectedRewind, "invoke "+action, "no suspended invoke to resume")
	}
	if i.staging.action != action {
		return bridgeerrors.New(bridgeerrors.KindUnexpectedRewind, "invoke "+action,
			fmt.Sprintf("rewind re-entered %q but %q was suspended", action, i.staging.action))
	}
	if err := i.suspender.StopRewind(); err != nil {
		return bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "stop rewind", err)
	}
	i.staging.phase = stageReading
	return nil
}

func (i *Instance) setPhase(p stagePhase) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.staging.phase = p
}

// release drops the staging guard. Only called once the slot is clear.
func (i *Instance) release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.staging = stagingGuard{}
}

// callStaged issues the first-pass host call of a cooperative invoke. A
// failed or panicking call clears the slot and drops the guard before the
// failure propagates.
func (i *Instance) callStaged(ctx context.Context, action string, params any, lctx entities.Context) error {
	defer func() {
		if r := recover(); r != nil {
			i.clearAfterFailedCall()
			panic(r)
		}
	}()
	if err := i.caller.CallBlocking(ctx, action, params, lctx); err != nil {
		i.clearAfterFailedCall()
		return err
	}
	return nil
}

// clearAfterFailedCall empties the slot after a call primitive failed, so a
// partially staged response cannot leak into the next invoke.
func (i *Instance) clearAfterFailedCall() {
	if err := i.substrate.ClearResponseBuffer(); err != nil {
		i.logger.Error("clear response buffer failed; staging slot stays locked", "error", err)
		return
	}
	i.release()
}

// readStaged reads, clears and decodes the staged response. The slot is
// cleared and the guard dropped on every way out, faults included.
func (i *Instance) readStaged() (resp entities.Response, err error) {
	defer func() {
		if cerr := i.substrate.ClearResponseBuffer(); cerr != nil {
			i.logger.Error("clear response buffer failed; staging slot stays locked", "error", cerr)
			if err == nil {
				resp, err = entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "clear response buffer", cerr)
			}
			return
		}
		i.release()
	}()

	n, err := i.substrate.ResponseLen()
	if err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "response len", err)
	}
	if n == 0 {
		return entities.EmptyResult(), nil
	}

	ptr, err := i.substrate.ResponsePtr()
	if err != nil {
		return entities.Response{}, bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "response ptr", err)
	}
	h := entities.Handle{Offset: ptr, Length: n}
	defer i.arena.Release(h)
	return protocol.DecodeResponse(i.arena.ReadBytes(h))
}

// Close retires the instance: the delegation channel is destroyed and a
// staging slot left occupied by an abandoned invoke is cleared.
func (i *Instance) Close() error {
	i.channel.Destroy()

	i.mu.Lock()
	guard := i.staging
	i.mu.Unlock()
	if !guard.held() {
		return nil
	}

	i.logger.Warn("closing instance with an unfinished invoke", "action", guard.action)
	if err := i.substrate.ClearResponseBuffer(); err != nil {
		return bridgeerrors.Wrap(bridgeerrors.KindForeignBoundaryFault, "close", err)
	}
	i.release()
	return nil
}

// IsSuspended reports whether err signals a cooperative suspension.
func IsSuspended(err error) bool {
	return errors.Is(err, bridgeerrors.ErrSuspended)
}
