package host

import (
	"fmt"

	apptemplate "github.com/reglet-dev/reglet-bridge/application/template"
	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
	"github.com/reglet-dev/reglet-bridge/infrastructure/parser"
)

// ConfigParser parses raw configuration bytes into a HostConfig. It does
// not validate.
type ConfigParser interface {
	Parse(data []byte) (*config.HostConfig, error)
}

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ConfigParser
	strictTemplates bool // Fail on missing template keys
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:          parser.NewYamlConfigParser(),
		strictTemplates: true,
	}
}

// Loader turns a host configuration file into a validated HostConfig.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom config parser.
func WithParser(p ConfigParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), rendering fails if a referenced key is missing.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
		)
	}
	return &Loader{config: cfg}
}

// LoadConfig renders raw with vars, parses it, fills defaults and validates
// the result.
func (l *Loader) LoadConfig(raw []byte, vars map[string]any) (*config.HostConfig, error) {
	data, err := l.config.templateEngine.Render(raw, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render host config: %w", err)
	}

	cfg, err := l.config.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.ExecutionRegime(); err != nil {
		return nil, fmt.Errorf("invalid host config: %w", err)
	}
	return cfg, nil
}
