package host

import (
	"bytes"
)

// Hand-assembled guests exercising the host module without a guest toolchain.
// Every guest imports the same host functions and exports memory, run,
// allocate and deallocate. allocate always returns scratchAddr.

const (
	completeAddr = 256 // "complete"
	paramsAddr   = 272 // guestParams
	echoAddr     = 304 // "echo"
	resultAddr   = 2048
	scratchAddr  = 1024
)

const guestParams = `{"ok":true,"data":"hi"}`

// Import indices; defined functions follow.
const (
	fnCall = iota
	fnCast
	fnResponsePtr
	fnResponseLen
	fnSuspendState
	fnStopRewind
	fnResultSize
	fnResult
	fnRun
	fnAllocate
	fnDeallocate
)

type guestKind int

const (
	guestSilent      guestKind = iota // returns without signalling
	guestSignal                       // casts complete with guestParams
	guestEcho                         // calls echo, then completes with its result
	guestCooperative                  // calls echo, suspends, completes after the rewind
	guestTrap                         // traps
)

func uleb(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	return append(uleb(uint32(len(items))), bytes.Join(items, nil)...) //nolint:gosec // small
}

func str(s string) []byte {
	return append(uleb(uint32(len(s))), s...) //nolint:gosec // small
}

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(content)))...), content...) //nolint:gosec // small
}

func funcType(params, results int) []byte {
	t := []byte{0x60, byte(params)}
	t = append(t, bytes.Repeat([]byte{0x7f}, params)...)
	t = append(t, byte(results))
	return append(t, bytes.Repeat([]byte{0x7f}, results)...)
}

func i32(v int32) []byte {
	return append([]byte{0x41}, sleb(v)...)
}

func call(idx int) []byte {
	return append([]byte{0x10}, uleb(uint32(idx))...) //nolint:gosec // small
}

func body(code ...[]byte) []byte {
	b := append([]byte{0x00}, bytes.Join(code, nil)...) // no locals
	b = append(b, 0x0b)
	return append(uleb(uint32(len(b))), b...) //nolint:gosec // small
}

func dataSegment(addr int32, data string) []byte {
	seg := append([]byte{0x00}, i32(addr)...)
	seg = append(seg, 0x0b)
	return append(seg, str(data)...)
}

const drop = 0x1a

// callEcho issues call("echo", guestParams) and drops the status.
func callEcho() []byte {
	return bytes.Join([][]byte{
		i32(echoAddr), i32(4), i32(paramsAddr), i32(int32(len(guestParams))), i32(0), i32(0),
		call(fnCall), {drop},
	}, nil)
}

func runBody(kind guestKind) []byte {
	switch kind {
	case guestSignal:
		return body(
			i32(completeAddr), i32(8), i32(paramsAddr), i32(int32(len(guestParams))), i32(0), i32(0),
			call(fnCast), []byte{drop},
		)
	case guestEcho:
		return body(
			callEcho(),
			i32(completeAddr), i32(8), i32(resultAddr), call(fnResultSize),
			i32(resultAddr), call(fnResult),
			i32(0), i32(0), call(fnCast), []byte{drop},
		)
	case guestCooperative:
		return body(
			call(fnSuspendState), i32(2), []byte{0x46}, // i32.eq
			[]byte{0x04, 0x40}, // if
			call(fnStopRewind),
			i32(completeAddr), i32(8), call(fnResponsePtr), call(fnResponseLen), i32(0), i32(0),
			call(fnCast), []byte{drop},
			[]byte{0x05}, // else
			callEcho(),
			[]byte{0x0b}, // end
		)
	case guestTrap:
		return body([]byte{0x00}) // unreachable
	default:
		return body()
	}
}

func guestModule(kind guestKind) []byte {
	const mod = "reglet_bridge"
	imports := vec(
		append(append(str(mod), str("call")...), 0x00, 0),
		append(append(str(mod), str("cast")...), 0x00, 0),
		append(append(str(mod), str("get_response_ptr")...), 0x00, 1),
		append(append(str(mod), str("get_response_len")...), 0x00, 1),
		append(append(str(mod), str("get_suspend_state")...), 0x00, 1),
		append(append(str(mod), str("stop_rewind")...), 0x00, 2),
		append(append(str(mod), str("getExecutionResultSize")...), 0x00, 1),
		append(append(str(mod), str("getExecutionResult")...), 0x00, 3),
	)

	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	wasm = append(wasm, section(1, vec(
		funcType(6, 1), // 0: call, cast
		funcType(0, 1), // 1: getters
		funcType(0, 0), // 2: run, stop_rewind
		funcType(1, 0), // 3: getExecutionResult
		funcType(1, 1), // 4: allocate
		funcType(2, 0), // 5: deallocate
	))...)
	wasm = append(wasm, section(2, imports)...)
	wasm = append(wasm, section(3, vec([]byte{2}, []byte{4}, []byte{5}))...)
	wasm = append(wasm, section(5, vec([]byte{0x00, 0x01}))...)
	wasm = append(wasm, section(7, vec(
		append(str("memory"), 0x02, 0),
		append(str("run"), 0x00, fnRun),
		append(str("allocate"), 0x00, fnAllocate),
		append(str("deallocate"), 0x00, fnDeallocate),
	))...)
	wasm = append(wasm, section(10, vec(
		runBody(kind),
		body(i32(scratchAddr)),
		body(),
	))...)
	wasm = append(wasm, section(11, vec(
		dataSegment(completeAddr, "complete"),
		dataSegment(paramsAddr, guestParams),
		dataSegment(echoAddr, "echo"),
	))...)
	return wasm
}

// emptyModule is a valid module with no exports.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
