package delegation

import (
	"context"
	"sync"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/reglet-bridge/domain/errors"
)

// Channel is the delegation slot of one program instance. At most one slot
// is installed at a time and each slot accepts at most one Pending.
//
//	if err := ch.Create(); err != nil { ... }
//	defer ch.Destroy()
//	// run the program, which calls ch.Place
//	resp, err := ch.TakeAndAwait(ctx)
type Channel struct {
	slot      *Pending
	mu        sync.Mutex
	installed bool
	placed    bool
}

// NewChannel creates a Channel with no slot installed.
func NewChannel() *Channel {
	return &Channel{}
}

// Create installs an empty slot. A slot that is already installed means the
// delegated entry point was re-entered, which is reported as ChannelExists.
func (c *Channel) Create() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed {
		return bridgeerrors.New(bridgeerrors.KindChannelExists, "create", "a delegation slot is already installed")
	}
	c.installed = true
	c.placed = false
	c.slot = nil
	return nil
}

// Place stores the pending result of the current run.
func (c *Channel) Place(p *Pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed {
		return bridgeerrors.New(bridgeerrors.KindMissingChannel, "place", "no delegation slot is installed")
	}
	if c.placed {
		return bridgeerrors.New(bridgeerrors.KindChannelOccupied, "place", "the handler entry point was invoked more than once")
	}
	c.slot = p
	c.placed = true
	return nil
}

// TakeAndAwait removes the pending result and waits for it to settle.
// It never blocks on an empty slot.
func (c *Channel) TakeAndAwait(ctx context.Context) (entities.Response, error) {
	c.mu.Lock()
	if !c.installed {
		c.mu.Unlock()
		return entities.Response{}, bridgeerrors.New(bridgeerrors.KindMissingChannel, "take", "no delegation slot is installed")
	}
	p := c.slot
	c.slot = nil
	c.mu.Unlock()

	if p == nil {
		return entities.Response{}, bridgeerrors.New(bridgeerrors.KindHandlerNotInvoked, "take", "the program finished without invoking the handler entry point")
	}
	return p.Await(ctx)
}

// Destroy removes the slot unconditionally. It is safe to call without a
// slot installed.
func (c *Channel) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed = false
	c.placed = false
	c.slot = nil
}

// Installed reports whether a slot is installed.
func (c *Channel) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}
