// Package wazero binds the bridge host contract to the wazero runtime.
//
// RegisterWithRuntime exports the "reglet_bridge" host module. Per-run state
// (the initial payload, pending and staged responses, the completion) lives in
// a Session carried by the context passed to the guest export. In the
// cooperative regime blocking calls are executed between an asyncify unwind
// and rewind by the Scheduler.
package wazero
