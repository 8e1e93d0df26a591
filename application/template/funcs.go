package template

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// wasmPageSize is the size of one WebAssembly linear memory page.
const wasmPageSize = 64 << 10

var sizeUnits = []struct {
	suffix string
	mult   uint64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

// funcs returns the helpers available to host configuration templates.
//
//	env "NAME"          value of an environment variable
//	default "x" .v      .v, or "x" when .v is empty
//	regime "suspend"    canonical regime name ("cooperative")
//	bytes "4MiB"        size in bytes (max_request_bytes)
//	pages "16MiB"       size in 64 KiB pages, rounded up (memory_limit_pages)
func funcs(strict bool, lookup func(string) (string, bool)) template.FuncMap {
	return template.FuncMap{
		"env": func(name string) (string, error) {
			v, ok := lookup(name)
			if !ok && strict {
				return "", fmt.Errorf("environment variable %s is not set", name)
			}
			return v, nil
		},
		"default": func(def, v any) any {
			if isEmpty(v) {
				return def
			}
			return v
		},
		"regime": func(name string) (string, error) {
			kind, err := entities.ParseRegimeKind(strings.TrimSpace(name))
			if err != nil {
				return "", err
			}
			return kind.String(), nil
		},
		"bytes": parseSize,
		"pages": func(size string) (uint32, error) {
			n, err := parseSize(size)
			if err != nil {
				return 0, err
			}
			return uint32((uint64(n) + wasmPageSize - 1) / wasmPageSize), nil //nolint:gosec // G115: at most 65536
		},
	}
}

// parseSize parses a byte size with an optional binary unit suffix.
func parseSize(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, mult = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.mult
			break
		}
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	total := n * mult
	if total > 1<<32-1 {
		return 0, fmt.Errorf("size %d exceeds 32-bit memory", total)
	}
	return uint32(total), nil //nolint:gosec // G115: bounded above
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}
