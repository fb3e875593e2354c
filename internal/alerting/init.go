package alerting

import (
	"context"

	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/logger"
)

// SeedDefaults ensures the built-in rules and configuration entries exist. It
// checks by key so a partial seed from an earlier start self-heals, and never
// overwrites operator edits.
func SeedDefaults(ctx context.Context, rules repository.RuleRepository, configs repository.ConfigRepository, reg *Registry, log logger.Logger) error {
	res, err := ImportCatalog(ctx, rules, configs, DefaultCatalog(), reg, ImportOptions{})
	if err != nil {
		return err
	}
	if res.RulesCreated > 0 || res.ConfigCreated > 0 {
		log.Info("seeded default alert rules",
			logger.Int("rules_created", res.RulesCreated),
			logger.Int("config_created", res.ConfigCreated))
	}
	return nil
}
