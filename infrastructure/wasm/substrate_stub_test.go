//go:build !wasip1

package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstrate_PanicsNatively(t *testing.T) {
	s := NewSubstrate()

	assert.PanicsWithValue(t, unavailable, func() { _, _ = s.Alloc(8) })
	assert.PanicsWithValue(t, unavailable, func() { _ = s.StopRewind() })
	assert.PanicsWithValue(t, unavailable, func() { _, _ = s.Regime() })
}
