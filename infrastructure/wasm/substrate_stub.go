//go:build !wasip1

// Package wasm binds the bridge host contract for guests compiled to wasip1.
package wasm

import (
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

// Compile-time interface compliance check
var (
	_ ports.Substrate = (*Substrate)(nil)
	_ ports.Suspender = (*Substrate)(nil)
)

const unavailable = "WASM substrate not available in native build. Use infrastructure/native or bridgetest instead."

// Substrate is the native stub of the wasip1 substrate.
// It lets guest code compile on non-WASM targets (e.g. for running tests).
type Substrate struct{}

// NewSubstrate creates the stub.
func NewSubstrate() *Substrate {
	return &Substrate{}
}

func (s *Substrate) Alloc(uint32) (uint32, error)              { panic(unavailable) }
func (s *Substrate) Dealloc(uint32, uint32) error              { panic(unavailable) }
func (s *Substrate) ReadString(uint32, uint32) (string, error) { panic(unavailable) }
func (s *Substrate) WriteString(uint32, string) error          { panic(unavailable) }
func (s *Substrate) Call(_, _, _ entities.Handle) error        { panic(unavailable) }
func (s *Substrate) Cast(_, _, _ entities.Handle) error        { panic(unavailable) }
func (s *Substrate) ExecutionResultSize() (uint32, error)      { panic(unavailable) }
func (s *Substrate) ExecutionResult(uint32) error              { panic(unavailable) }
func (s *Substrate) ResponsePtr() (uint32, error)              { panic(unavailable) }
func (s *Substrate) ResponseLen() (uint32, error)              { panic(unavailable) }
func (s *Substrate) ClearResponseBuffer() error                { panic(unavailable) }
func (s *Substrate) ContextSize() (uint32, error)              { panic(unavailable) }
func (s *Substrate) Context(uint32) error                      { panic(unavailable) }
func (s *Substrate) SuspendState() entities.SuspendState       { panic(unavailable) }
func (s *Substrate) StopRewind() error                         { panic(unavailable) }
func (s *Substrate) Regime() (entities.Regime, error)          { panic(unavailable) }
