package ports

import "github.com/reglet-dev/reglet-bridge/domain/entities"

// HostCaller issues host calls. Each argument is a handle to a UTF-8 JSON
// buffer in the arena: the action name, the parameters and the context.
type HostCaller interface {
	// Call issues a blocking call; the result is staged for later retrieval.
	Call(action, params, context entities.Handle) error

	// Cast issues a fire-and-forget call. The host takes ownership of the
	// three argument buffers.
	Cast(action, params, context entities.Handle) error
}

// ResultFetcher retrieves the result of a blocking call in the synchronous
// regime.
type ResultFetcher interface {
	// ExecutionResultSize returns the byte length of the pending result.
	ExecutionResultSize() (uint32, error)

	// ExecutionResult writes the pending result into the arena at dest.
	ExecutionResult(dest uint32) error
}

// ResponseStage exposes the process-wide response staging slot used by the
// cooperative regime.
type ResponseStage interface {
	// ResponsePtr returns the offset of the staged response buffer.
	ResponsePtr() (uint32, error)

	// ResponseLen returns the byte length of the staged response.
	ResponseLen() (uint32, error)

	// ClearResponseBuffer empties the staging slot.
	ClearResponseBuffer() error
}

// ContextSource pulls the initial invocation payload from the host.
type ContextSource interface {
	// ContextSize returns the byte length of the initial payload.
	ContextSize() (uint32, error)

	// Context writes the initial payload into the arena at dest.
	Context(dest uint32) error
}

// Suspender is the suspension control of a substrate that supports the
// cooperative regime.
type Suspender interface {
	// SuspendState reports whether the substrate is rewinding.
	SuspendState() entities.SuspendState

	// StopRewind tells the substrate the rewind reached its suspension point.
	StopRewind() error
}

// Substrate is the complete host contract consumed by a bridge instance.
// The Suspender half is optional and only required by the cooperative regime.
type Substrate interface {
	Arena
	HostCaller
	ResultFetcher
	ResponseStage
	ContextSource
}
