package bridge

import (
	"log/slog"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/domain/ports"
)

type instanceConfig struct {
	logger    *slog.Logger
	evaluator ports.Evaluator
	preplaced *string
	regime    entities.Regime
}

// Option configures an Instance.
type Option func(*instanceConfig)

func defaultInstanceConfig() instanceConfig {
	return instanceConfig{
		regime: entities.Synchronous(),
		logger: slog.Default(),
	}
}

// WithRegime fixes the execution regime. The default is synchronous.
func WithRegime(r entities.Regime) Option {
	return func(c *instanceConfig) {
		c.regime = r
	}
}

// WithLogger sets the logger used for absorbed faults and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *instanceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPreplacedPayload fills the pre-placed payload slot, so the initial
// request is not pulled from the host.
func WithPreplacedPayload(payload string) Option {
	return func(c *instanceConfig) {
		c.preplaced = &payload
	}
}

// WithEvaluator sets the evaluator used by the unconstrained delegated role
// to run a bundled program.
func WithEvaluator(e ports.Evaluator) Option {
	return func(c *instanceConfig) {
		c.evaluator = e
	}
}
