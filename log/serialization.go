package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// appendAttr converts attr to wire form and appends it to dst. Groups are
// flattened into dotted keys; empty attributes are dropped.
func appendAttr(dst []entities.LogAttr, prefix string, attr slog.Attr) []entities.LogAttr {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}

	if attr.Value.Kind() == slog.KindGroup {
		p := prefix
		if attr.Key != "" {
			p = joinKey(prefix, attr.Key)
		}
		for _, a := range attr.Value.Group() {
			dst = appendAttr(dst, p, a)
		}
		return dst
	}

	wire := toLogAttr(attr)
	wire.Key = joinKey(prefix, wire.Key)
	return append(dst, wire)
}

// toLogAttr converts a resolved, non-group slog.Attr to entities.LogAttr.
func toLogAttr(attr slog.Attr) entities.LogAttr {
	wire := entities.LogAttr{
		Key: attr.Key,
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = fmt.Sprintf("%d", attr.Value.Int64())
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = fmt.Sprintf("%d", attr.Value.Uint64())
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = fmt.Sprintf("%t", attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = fmt.Sprintf("%f", attr.Value.Float64())
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindAny:
		v := attr.Value.Any()
		if v == nil {
			wire.Type = "any"
			wire.Value = "<nil>"
			break
		}
		if err, isErr := v.(error); isErr {
			wire.Type = "error"
			wire.Value = err.Error()
		} else if data, marshalErr := json.Marshal(v); marshalErr == nil {
			wire.Type = "json"
			wire.Value = string(data)
		} else {
			wire.Type = "any"
			wire.Value = fmt.Sprintf("%v", v)
		}
	default:
		wire.Type = "any"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return wire
}
