//go:build wasip1

package wasm

import (
	"fmt"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/internal/abi"
)

// Compile-time interface compliance check
var (
	_ ports.Substrate = (*Substrate)(nil)
	_ ports.Suspender = (*Substrate)(nil)
)

// Substrate implements ports.Substrate over the reglet_bridge host module.
// The arena is the guest's own pinned heap (see internal/abi).
type Substrate struct{}

// NewSubstrate returns the host substrate of the running guest.
func NewSubstrate() *Substrate {
	return &Substrate{}
}

func (s *Substrate) Alloc(size uint32) (uint32, error) {
	return abi.Alloc(size)
}

func (s *Substrate) Dealloc(offset, size uint32) error {
	return abi.Free(offset, size)
}

func (s *Substrate) ReadString(offset, length uint32) (string, error) {
	return abi.ReadString(offset, length)
}

func (s *Substrate) WriteString(offset uint32, text string) error {
	return abi.WriteString(offset, text)
}

func (s *Substrate) Call(action, params, ctx entities.Handle) error {
	if st := hostCall(action.Offset, action.Length, params.Offset, params.Length, ctx.Offset, ctx.Length); st != 0 {
		return fmt.Errorf("reglet_bridge.call failed with status %d", st)
	}
	return nil
}

func (s *Substrate) Cast(action, params, ctx entities.Handle) error {
	if st := hostCast(action.Offset, action.Length, params.Offset, params.Length, ctx.Offset, ctx.Length); st != 0 {
		return fmt.Errorf("reglet_bridge.cast failed with status %d", st)
	}
	return nil
}

func (s *Substrate) ExecutionResultSize() (uint32, error) {
	return hostExecutionResultSize(), nil
}

func (s *Substrate) ExecutionResult(dest uint32) error {
	hostExecutionResult(dest)
	return nil
}

func (s *Substrate) ResponsePtr() (uint32, error) {
	return hostResponsePtr(), nil
}

func (s *Substrate) ResponseLen() (uint32, error) {
	return hostResponseLen(), nil
}

func (s *Substrate) ClearResponseBuffer() error {
	hostClearResponseBuffer()
	return nil
}

func (s *Substrate) ContextSize() (uint32, error) {
	return hostContextSize(), nil
}

func (s *Substrate) Context(dest uint32) error {
	hostContext(dest)
	return nil
}

// SuspendState implements ports.Suspender.
func (s *Substrate) SuspendState() entities.SuspendState {
	return entities.SuspendState(hostSuspendState())
}

// StopRewind implements ports.Suspender.
func (s *Substrate) StopRewind() error {
	hostStopRewind()
	return nil
}

// Regime returns the execution regime the host instantiated this guest
// under. Guests pass it to bridge.WithRegime when building their instance.
func (s *Substrate) Regime() (entities.Regime, error) {
	return entities.RegimeFromCode(hostRegime())
}
