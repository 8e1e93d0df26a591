//go:build wasip1

// Package wasm binds the bridge host contract for guests compiled to wasip1.
package wasm

// Blocking and fire-and-forget calls. Each takes the action, parameters and
// context buffers and returns 0 on success.
//
//go:wasmimport reglet_bridge call
func hostCall(actionPtr, actionLen, paramsPtr, paramsLen, ctxPtr, ctxLen uint32) uint32

//go:wasmimport reglet_bridge cast
func hostCast(actionPtr, actionLen, paramsPtr, paramsLen, ctxPtr, ctxLen uint32) uint32

//go:wasmimport reglet_bridge getExecutionResultSize
func hostExecutionResultSize() uint32

//go:wasmimport reglet_bridge getExecutionResult
func hostExecutionResult(dest uint32)

//go:wasmimport reglet_bridge get_response_ptr
func hostResponsePtr() uint32

//go:wasmimport reglet_bridge get_response_len
func hostResponseLen() uint32

//go:wasmimport reglet_bridge clear_response_buffer
func hostClearResponseBuffer()

//go:wasmimport reglet_bridge getContextSize
func hostContextSize() uint32

//go:wasmimport reglet_bridge getContext
func hostContext(dest uint32)

//go:wasmimport reglet_bridge get_suspend_state
func hostSuspendState() int32

//go:wasmimport reglet_bridge stop_rewind
func hostStopRewind()

//go:wasmimport reglet_bridge get_regime
func hostRegime() int32
