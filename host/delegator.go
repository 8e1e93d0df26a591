package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/reglet-dev/reglet-bridge/bridge"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/entry"
	"github.com/reglet-dev/reglet-bridge/hostfuncs"
	"github.com/reglet-dev/reglet-bridge/infrastructure/native"
)

// ActionRunDelegated is the host action constrained guests hand programs to.
const ActionRunDelegated = entry.ActionRunDelegated

// Program is a delegated program the host knows how to evaluate.
type Program struct {
	Handler entry.Handler
	Name    string
	Digest  string
}

// ProgramTable maps shipped program sources to registered handlers. Sources
// are matched by SHA-256 digest, so the source shipped by a guest must be
// byte-identical to the one registered.
type ProgramTable struct {
	programs *xsync.MapOf[string, Program]
}

var _ ports.Evaluator = (*ProgramTable)(nil)

// NewProgramTable creates an empty table.
func NewProgramTable() *ProgramTable {
	return &ProgramTable{programs: xsync.NewMapOf[string, Program]()}
}

// Digest returns the key a source is registered under.
func Digest(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Register makes source evaluable as name and returns its digest.
func (t *ProgramTable) Register(name string, source []byte, h entry.Handler) string {
	d := Digest(source)
	t.programs.Store(d, Program{Name: name, Digest: d, Handler: h})
	return d
}

// Lookup returns the program registered for source.
func (t *ProgramTable) Lookup(source []byte) (Program, bool) {
	return t.programs.Load(Digest(source))
}

// Names returns the names of the registered programs, sorted.
func (t *ProgramTable) Names() []string {
	var names []string
	t.programs.Range(func(_ string, p Program) bool {
		names = append(names, p.Name)
		return true
	})
	slices.Sort(names)
	return names
}

// Evaluate implements ports.Evaluator. It serves the registered handler on
// the instance carried by ctx.
func (t *ProgramTable) Evaluate(ctx context.Context, name string, source []byte) error {
	p, ok := t.Lookup(source)
	if !ok {
		return bridgeerrors.New(bridgeerrors.KindProgramUnknown, "evaluate", fmt.Sprintf("no program registered for %s (%s)", name, Digest(source)))
	}
	inst := bridge.FromContext(ctx)
	if inst == nil {
		return bridgeerrors.New(bridgeerrors.KindInvalidRegime, "evaluate", "no instance in context")
	}
	return entry.Serve(ctx, inst, p.Handler)
}

// Delegator serves the run_delegated action.
type Delegator struct {
	programs   *ProgramTable
	dispatcher ports.Dispatcher
	inFlight   *xsync.MapOf[string, struct{}]
	logger     *slog.Logger
	allow      []string
}

// DelegatorOption configures a Delegator.
type DelegatorOption func(*Delegator)

// WithDelegatorLogger sets the logger of the delegated instances.
func WithDelegatorLogger(l *slog.Logger) DelegatorOption {
	return func(d *Delegator) {
		d.logger = l
	}
}

// WithAllowList restricts the programs that may run. Empty allows all.
func WithAllowList(names []string) DelegatorOption {
	return func(d *Delegator) {
		d.allow = names
	}
}

// WithDispatcher serves the host calls of delegated programs from disp.
func WithDispatcher(disp ports.Dispatcher) DelegatorOption {
	return func(d *Delegator) {
		d.dispatcher = disp
	}
}

// NewDelegator creates a Delegator over programs.
func NewDelegator(programs *ProgramTable, opts ...DelegatorOption) *Delegator {
	d := &Delegator{
		programs: programs,
		inFlight: xsync.NewMapOf[string, struct{}](),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dispatcher == nil {
		// Core actions only; an Executor replaces this with its own registry.
		reg, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(hostfuncs.CoreBundle(d.logger)))
		if err != nil {
			panic(fmt.Sprintf("host: core action registry: %v", err))
		}
		d.dispatcher = reg
	}
	return d
}

// InFlight returns the number of delegated runs in progress.
func (d *Delegator) InFlight() int {
	return d.inFlight.Size()
}

// Handle is the hostfuncs.ByteHandler of run_delegated.
//
// At most one run per execution id is in flight; a second hand-off for the
// same id fails.
func (d *Delegator) Handle(ctx context.Context, params []byte) ([]byte, error) {
	var run entities.DelegatedRun
	if err := json.Unmarshal(params, &run); err != nil {
		return nil, hostfuncs.NewValidationError(fmt.Sprintf("invalid delegated run: %v", err))
	}
	if len(d.allow) > 0 && !slices.Contains(d.allow, run.Program) {
		return nil, hostfuncs.NewValidationError(fmt.Sprintf("program %q is not allowed", run.Program))
	}
	src, err := entry.DecodeSource(run.Encoding, run.Source)
	if err != nil {
		return nil, hostfuncs.NewValidationError(err.Error())
	}

	var req entities.InvocationRequest
	if len(run.Payload) > 0 {
		if err := json.Unmarshal(run.Payload, &req); err != nil {
			return nil, hostfuncs.NewValidationError(fmt.Sprintf("invalid delegated payload: %v", err))
		}
	}
	id := req.Context.Logic.ExecutionID
	if id == "" {
		if inv, ok := hostfuncs.InvocationFrom(ctx); ok {
			id = inv.Logic.ExecutionID
		}
	}
	if id == "" {
		return nil, hostfuncs.NewValidationError("delegated run without logic.execution_id")
	}

	if _, running := d.inFlight.LoadOrStore(id, struct{}{}); running {
		return nil, fmt.Errorf("execution %q is already running", id)
	}
	defer d.inFlight.Delete(id)

	sub := native.NewSubstrate(ctx, d.dispatcher, native.WithLogger(d.logger))
	inst, err := bridge.New(sub,
		bridge.WithRegime(entities.Delegated(entities.RoleUnconstrained)),
		bridge.WithEvaluator(d.programs),
		bridge.WithPreplacedPayload(string(run.Payload)),
		bridge.WithLogger(d.logger),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = inst.Close()
	}()

	data, err := entry.Delegate(ctx, inst, entry.Program{Name: run.Program, Source: src}, req)
	if err != nil {
		d.logger.WarnContext(ctx, "host: delegated run failed",
			"program", run.Program, "execution_id", id, "error", err)
		return nil, err
	}
	return data, nil
}
