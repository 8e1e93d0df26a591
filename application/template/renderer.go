// Package template renders host configuration files before they are parsed.
package template

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"text/template"

	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

type templateConfig struct {
	lookupEnv func(string) (string, bool)
	extra     template.FuncMap
	strict    bool
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode. When enabled (default), missing
// keys and unset environment variables fail the render.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// WithEnv replaces the environment lookup used by the env helper.
func WithEnv(lookup func(string) (string, bool)) TemplateOption {
	return func(c *templateConfig) {
		c.lookupEnv = lookup
	}
}

// WithFuncs adds helpers; they take precedence over the built-in ones.
func WithFuncs(fm template.FuncMap) TemplateOption {
	return func(c *templateConfig) {
		c.extra = fm
	}
}

// GoTemplateEngine implements ports.TemplateEngine with text/template.
// Templates see the caller's variables as .vars.
type GoTemplateEngine struct {
	funcs  template.FuncMap
	strict bool
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := templateConfig{strict: true, lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&cfg)
	}

	fm := funcs(cfg.strict, cfg.lookupEnv)
	maps.Copy(fm, cfg.extra)
	return &GoTemplateEngine{funcs: fm, strict: cfg.strict}
}

// Render resolves raw against vars.
func (e *GoTemplateEngine) Render(raw []byte, vars map[string]any) ([]byte, error) {
	tmpl := template.New("host-config").Funcs(e.funcs)
	if e.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{"vars": vars}); err != nil {
		return nil, fmt.Errorf("failed to execute config template: %w", err)
	}
	return buf.Bytes(), nil
}
