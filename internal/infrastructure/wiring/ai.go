package wiring

import (
	"log/slog"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/pillars/pkg/ai"
	domainai "github.com/felixgeelhaar/pillars/pkg/domain/ai"
)

// LoadPlanGenerator builds the plan generator named by ai.provider. The
// template generator needs no provider; the others are wrapped with retry
// and timeout from the ai.* settings.
func LoadPlanGenerator(cfg config.AIConfig, logger *slog.Logger) (domainai.PlanGenerator, error) {
	if cfg.Provider == config.ProviderTemplate {
		return infraai.TemplateGenerator{}, nil
	}

	resilience := infraai.DefaultResilienceConfig()
	r := cfg.Resilience()
	if r.MaxRetries > 0 {
		resilience.MaxRetries = r.MaxRetries
	}
	if r.RetryDelay > 0 {
		resilience.RetryDelay = r.RetryDelay
	}
	if r.Timeout > 0 {
		resilience.Timeout = r.Timeout
	}

	base, err := infraai.NewProvider(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}
	provider := infraai.NewResilientProviderWithConfig(base, resilience)
	return infraai.NewProviderPlanGenerator(provider, logger), nil
}
