package entities

import "time"

// ContextWire is what a guest reports about its context.Context alongside a
// log record: the run it belongs to and how much time it had left.
type ContextWire struct {
	ExecutionID string `json:"execution_id,omitempty"`
	TimeoutMs   int64  `json:"timeout_ms,omitempty"`
	Canceled    bool   `json:"canceled,omitempty"`
}

// LogRecord is the parameter payload of the "log" action: one slog record
// forwarded from guest to host.
type LogRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Attrs     []LogAttr   `json:"attrs,omitempty"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Context   ContextWire `json:"context"`
}

// LogAttr is a single slog attribute in wire form.
type LogAttr struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "bool", "float64", "time", "error", "json", "any"
	Value string `json:"value"` // string representation of the value
}
