package arena_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-bridge/arena"
	"github.com/reglet-dev/reglet-bridge/bridgetest"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

func TestAllocateRelease_RoundTripKeepsAccounting(t *testing.T) {
	host := bridgetest.New()
	a := arena.New(host)

	for _, size := range []uint32{0, 1, 7, 64, 4096} {
		before := host.Arena()

		h, err := a.Allocate(size)
		require.NoError(t, err)
		assert.Equal(t, size, h.Length)
		a.Release(h)

		after := host.Arena()
		assert.Equal(t, before.InUse, after.InUse, "size %d", size)
	}
}

func TestAllocateZero_NoForeignCall(t *testing.T) {
	host := bridgetest.New()
	a := arena.New(host)

	h, err := a.Allocate(0)
	require.NoError(t, err)
	assert.True(t, h.IsZero())
	a.Release(h)

	assert.Empty(t, a.ReadBytes(h))
	require.NoError(t, a.WriteText(h, ""))

	stats := host.Arena()
	assert.Zero(t, stats.Allocs)
	assert.Zero(t, stats.Deallocs)
	assert.Zero(t, stats.Reads)
	assert.Zero(t, stats.Writes)
}

func TestTextRoundTrip(t *testing.T) {
	texts := []string{
		"",
		"plain ascii",
		"héllo wörld",
		"emoji 🚀🎉 and flags 🇩🇪",
		"é combining acute",
		"日本語のテキスト",
		`{"x":1}`,
	}

	host := bridgetest.New()
	a := arena.New(host)

	for _, text := range texts {
		h, err := a.TextToHandle(text)
		require.NoError(t, err)
		assert.Equal(t, uint32(len(text)), h.Length)
		assert.Equal(t, []byte(text), a.ReadBytes(h), "%q", text)
		a.Release(h)
	}
	assert.Zero(t, host.Live())
}

func TestWriteText_RejectsOverflow(t *testing.T) {
	a := arena.New(bridgetest.New())

	h, err := a.Allocate(2)
	require.NoError(t, err)
	defer a.Release(h)

	assert.Error(t, a.WriteText(h, "abc"))
}

func TestReadBytes_AbsorbsBoundaryFault(t *testing.T) {
	var logs bytes.Buffer
	host := bridgetest.New()
	a := arena.New(host, arena.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	h, err := a.TextToHandle("payload")
	require.NoError(t, err)
	defer a.Release(h)

	host.FailReads(1)
	assert.Equal(t, []byte{}, a.ReadBytes(h))
	assert.Contains(t, logs.String(), "read failed")

	assert.Equal(t, []byte("payload"), a.ReadBytes(h), "next read succeeds")
}

func TestAllocate_FailureIsBoundaryFault(t *testing.T) {
	a := arena.New(bridgetest.New(bridgetest.WithArenaSize(64)))

	_, err := a.Allocate(1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign_boundary_fault")
}

func TestScope_ReleasesEachHandleOnce(t *testing.T) {
	host := bridgetest.New()
	a := arena.New(host)

	func() {
		scope := a.Scope()
		defer scope.Close()

		_, err := scope.Text("one")
		require.NoError(t, err)
		_, err = scope.Text("")
		require.NoError(t, err)
		_, err = scope.Allocate(32)
		require.NoError(t, err)

		scope.Close()
	}()

	stats := host.Arena()
	assert.Equal(t, 2, stats.Allocs)
	assert.Equal(t, 2, stats.Deallocs)
	assert.Zero(t, stats.InUse)
}

func TestScope_ReleasesOnPanic(t *testing.T) {
	host := bridgetest.New()
	a := arena.New(host)

	assert.Panics(t, func() {
		scope := a.Scope()
		defer scope.Close()
		_, _ = scope.Text("leak me")
		panic("boom")
	})
	assert.Zero(t, host.Live())
}

func TestScope_Detach(t *testing.T) {
	host := bridgetest.New()
	a := arena.New(host)

	scope := a.Scope()
	h, err := scope.Text("owned elsewhere")
	require.NoError(t, err)

	assert.Equal(t, []entities.Handle{h}, scope.Detach())
	scope.Close()
	assert.Equal(t, 1, host.Live())

	a.Release(h)
	assert.Zero(t, host.Live())
}
