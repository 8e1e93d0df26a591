// Package delegation implements the single-slot hand-off that carries the
// eventual result of a delegated program run out of code that cannot await
// it itself.
package delegation

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// Pending is a deferred Response. It settles exactly once, by Resolve or
// Fail; later attempts are ignored.
type Pending struct {
	done chan struct{}
	resp entities.Response
	err  error
	once sync.Once
}

// NewPending creates an unsettled Pending.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved creates a Pending already settled with resp.
func Resolved(resp entities.Response) *Pending {
	p := NewPending()
	p.Resolve(resp)
	return p
}

// Go runs fn on its own goroutine and settles the Pending with its outcome.
// A panic in fn fails the Pending.
func Go(fn func() (entities.Response, error)) *Pending {
	p := NewPending()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Fail(fmt.Errorf("delegated handler panicked: %v", r))
			}
		}()
		resp, err := fn()
		if err != nil {
			p.Fail(err)
			return
		}
		p.Resolve(resp)
	}()
	return p
}

// Resolve settles p with resp. It reports whether this call settled p.
func (p *Pending) Resolve(resp entities.Response) bool {
	return p.settle(resp, nil)
}

// Fail settles p with err. It reports whether this call settled p.
func (p *Pending) Fail(err error) bool {
	return p.settle(entities.Response{}, err)
}

func (p *Pending) settle(resp entities.Response, err error) bool {
	settled := false
	p.once.Do(func() {
		p.resp, p.err = resp, err
		settled = true
		close(p.done)
	})
	return settled
}

// Done is closed once p has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Await blocks until p settles or ctx is done.
func (p *Pending) Await(ctx context.Context) (entities.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return entities.Response{}, ctx.Err()
	}
}
