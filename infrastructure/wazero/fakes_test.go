package wazero

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// fakeMemory is a flat linear memory. The embedded interface covers methods
// the tests never reach.
type fakeMemory struct {
	api.Memory
	buf []byte
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size)}
}

func (m *fakeMemory) Size() uint32 {
	return uint32(len(m.buf)) //nolint:gosec // test memory is small
}

func (m *fakeMemory) Read(offset, count uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(count)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := m.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, true
}

func (m *fakeMemory) WriteUint32Le(offset, v uint32) bool {
	return m.Write(offset, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

type fakeFunction struct {
	api.Function
	call func(ctx context.Context, params ...uint64) ([]uint64, error)
}

func (f *fakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.call(ctx, params...)
}

type fakeModule struct {
	api.Module
	name    string
	mem     *fakeMemory
	exports map[string]api.Function
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Memory() api.Memory {
	if m.mem == nil {
		return nil
	}
	return m.mem
}

func (m *fakeModule) ExportedFunction(name string) api.Function {
	return m.exports[name]
}

// guest is a fake bridge guest with a bump allocator.
type guest struct {
	*fakeModule
	mu    sync.Mutex
	next  uint32
	freed []entities.Handle
}

func newGuest() *guest {
	g := &guest{
		fakeModule: &fakeModule{name: "guest", mem: newFakeMemory(64 * 1024), exports: map[string]api.Function{}},
		next:       4096,
	}
	g.exports[ExportAllocate] = &fakeFunction{call: func(_ context.Context, params ...uint64) ([]uint64, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		ptr := g.next
		g.next += uint32(params[0]) //nolint:gosec // test sizes are small
		return []uint64{uint64(ptr)}, nil
	}}
	g.exports[ExportDeallocate] = &fakeFunction{call: func(_ context.Context, params ...uint64) ([]uint64, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.freed = append(g.freed, entities.Handle{Offset: uint32(params[0]), Length: uint32(params[1])}) //nolint:gosec // test values
		return nil, nil
	}}
	return g
}

// place writes data at the next free address and returns its handle.
func (g *guest) place(data []byte) entities.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	ptr := g.next
	g.next += uint32(len(data)) //nolint:gosec // test sizes are small
	copy(g.mem.buf[ptr:], data)
	return entities.Handle{Offset: ptr, Length: uint32(len(data))} //nolint:gosec // test sizes are small
}

func (g *guest) read(h entities.Handle) []byte {
	out := make([]byte, h.Length)
	copy(out, g.mem.buf[h.Offset:h.Offset+h.Length])
	return out
}

// callStack lays out the six arguments of call and cast.
func (g *guest) callStack(action string, params []byte, inv string) []uint64 {
	hs := []entities.Handle{g.place([]byte(action)), g.place(params), g.place([]byte(inv))}
	stack := make([]uint64, 0, 6)
	for _, h := range hs {
		stack = append(stack, api.EncodeU32(h.Offset), api.EncodeU32(h.Length))
	}
	return stack
}

type dispatched struct {
	action string
	params string
	inv    entities.ContextEnvelope
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	reply []byte
}

func (d *recordingDispatcher) Invoke(_ context.Context, action string, params []byte, inv entities.ContextEnvelope) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{action: action, params: string(params), inv: inv})
	return d.reply
}

func (d *recordingDispatcher) Calls() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}
