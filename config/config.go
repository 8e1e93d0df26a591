// Package config holds the host-side configuration of a bridge runtime.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

var validate = validator.New()

// Defaults applied by Normalize when a field is left empty.
const (
	DefaultMaxRequestBytes  uint32 = 4 << 20
	DefaultMemoryLimitPages uint32 = 256
	DefaultAsyncifyDataAddr uint32 = 16
	DefaultAsyncifyStack    uint32 = 1024
	DefaultLogLevel                = "info"
)

// HostConfig configures a host runtime that loads and runs guest modules.
type HostConfig struct {
	// Regime is the execution regime guests are instantiated under.
	Regime string `yaml:"regime" json:"regime" validate:"required,oneof=synchronous sync cooperative suspend delegated"`

	// Module is the path of the guest WebAssembly module.
	Module string `yaml:"module" json:"module" validate:"required"`

	// MaxRequestBytes bounds the initial payload handed to a guest.
	MaxRequestBytes uint32 `yaml:"max_request_bytes" json:"max_request_bytes,omitempty"`

	// MemoryLimitPages caps guest linear memory in 64 KiB pages.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages,omitempty" validate:"omitempty,max=65536"`

	LogLevel string `yaml:"log_level" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	Asyncify   AsyncifyConfig   `yaml:"asyncify" json:"asyncify"`
	Delegation DelegationConfig `yaml:"delegation" json:"delegation"`
}

// AsyncifyConfig locates the unwind/rewind data region in guest memory.
// Only used by the cooperative regime.
type AsyncifyConfig struct {
	DataAddr  uint32 `yaml:"data_addr" json:"data_addr,omitempty"`
	StackSize uint32 `yaml:"stack_size" json:"stack_size,omitempty" validate:"omitempty,min=256"`
}

// DelegationConfig enables the run_delegated action on the host.
type DelegationConfig struct {
	// Programs restricts which registered programs may be run. Empty allows all.
	Programs []string `yaml:"programs" json:"programs,omitempty" validate:"dive,required"`
	Enabled  bool     `yaml:"enabled" json:"enabled"`
}

// Normalize fills empty fields with their defaults.
func (c *HostConfig) Normalize() {
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.MemoryLimitPages == 0 {
		c.MemoryLimitPages = DefaultMemoryLimitPages
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Asyncify.DataAddr == 0 {
		c.Asyncify.DataAddr = DefaultAsyncifyDataAddr
	}
	if c.Asyncify.StackSize == 0 {
		c.Asyncify.StackSize = DefaultAsyncifyStack
	}
}

// Validate checks the configuration.
func (c *HostConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid host config: %w", err)
	}
	if c.Asyncify.DataAddr%4 != 0 {
		return fmt.Errorf("invalid host config: asyncify.data_addr %d is not 4-byte aligned", c.Asyncify.DataAddr)
	}
	return nil
}

// ExecutionRegime returns the regime the host instantiates guests under.
// A host configured for delegation runs guests in the constrained role.
func (c *HostConfig) ExecutionRegime() (entities.Regime, error) {
	kind, err := entities.ParseRegimeKind(c.Regime)
	if err != nil {
		return entities.Regime{}, err
	}
	if kind == entities.RegimeDelegated {
		return entities.Delegated(entities.RoleConstrained), nil
	}
	return entities.Regime{Kind: kind}, nil
}

// AllowsProgram reports whether the delegated runner may execute name.
func (c *HostConfig) AllowsProgram(name string) bool {
	if !c.Delegation.Enabled {
		return false
	}
	if len(c.Delegation.Programs) == 0 {
		return true
	}
	for _, p := range c.Delegation.Programs {
		if p == name {
			return true
		}
	}
	return false
}
