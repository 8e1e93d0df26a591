package schema

import (
	"fmt"
	"slices"
	"sync"

	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// catalogConfig holds configuration for the Catalog.
type catalogConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultCatalogConfig() catalogConfig {
	return catalogConfig{
		strictMode: true,
	}
}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) CatalogOption {
	return func(c *catalogConfig) {
		c.strictMode = enabled
	}
}

// Catalog maps names to the JSON Schemas of Go types.
// It is safe for concurrent use.
type Catalog struct {
	schemas sync.Map // map[string][]byte
	config  catalogConfig
}

// NewCatalog creates an empty Catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	cfg := defaultCatalogConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Catalog{config: cfg}
}

// Register generates and stores the schema of model under name.
func (c *Catalog) Register(name string, model any) error {
	if c.config.strictMode {
		if _, exists := c.schemas.Load(name); exists {
			return fmt.Errorf("schema %q already registered", name)
		}
	}

	data, err := GenerateSchema(model, WithID(name))
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}
	c.schemas.Store(name, data)
	return nil
}

// Schema returns the schema registered under name.
func (c *Catalog) Schema(name string) ([]byte, bool) {
	v, ok := c.schemas.Load(name)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	var names []string
	c.schemas.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}

// WireTypes returns a catalog of the types exchanged across the boundary and
// of the host configuration.
func WireTypes() (*Catalog, error) {
	c := NewCatalog()
	types := []struct {
		name  string
		model any
	}{
		{"context", entities.Context{}},
		{"context-envelope", entities.ContextEnvelope{}},
		{"delegated-run", entities.DelegatedRun{}},
		{"error-detail", entities.ErrorDetail{}},
		{"host-config", config.HostConfig{}},
		{"invocation-request", entities.InvocationRequest{}},
		{"log-record", entities.LogRecord{}},
		{"response", entities.Response{}},
		{"run-result", entities.RunResult{}},
	}
	for _, t := range types {
		if err := c.Register(t.name, t.model); err != nil {
			return nil, err
		}
	}
	return c, nil
}
