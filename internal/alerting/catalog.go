package alerting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/errors"
	"gopkg.in/yaml.v3"
)

const maxRuleKeyLength = 100

// Catalog is a set of rule definitions and global configuration entries, as
// loaded from a YAML catalog file.
type Catalog struct {
	Rules  []entities.Rule      `yaml:"rules"`
	Config []CatalogConfigEntry `yaml:"config"`
}

// CatalogConfigEntry is a global configuration entry in a catalog file.
type CatalogConfigEntry struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

// ImportOptions controls ImportCatalog.
type ImportOptions struct {
	// Overwrite updates existing rules and entries that differ. Without it
	// only missing keys are created.
	Overwrite bool
}

// ImportResult counts what ImportCatalog changed.
type ImportResult struct {
	RulesCreated   int `json:"rules_created"`
	RulesUpdated   int `json:"rules_updated"`
	RulesUnchanged int `json:"rules_unchanged"`
	ConfigCreated  int `json:"config_created"`
	ConfigUpdated  int `json:"config_updated"`
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(bytes.NewReader(data))
}

// ParseCatalog decodes a YAML catalog. Unknown fields are rejected.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil && err != io.EOF {
		return nil, errors.Newf("failed to parse catalog: %w", err).
			Component("catalog").
			Category(errors.CategoryValidation).
			Build()
	}
	return &cat, nil
}

// ValidateRule checks a rule definition. With a registry the rule must also
// bind to a registered trigger.
func ValidateRule(rule *entities.Rule, reg *Registry) error {
	var problems []string
	key := strings.TrimSpace(rule.Key)
	switch {
	case key == "":
		problems = append(problems, "key is required")
	case key != rule.Key:
		problems = append(problems, "key must not have surrounding spaces")
	case len(key) > maxRuleKeyLength:
		problems = append(problems, fmt.Sprintf("key exceeds %d characters", maxRuleKeyLength))
	}
	if strings.TrimSpace(rule.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !rule.Severity.Valid() {
		problems = append(problems, fmt.Sprintf("severity %q is not Info, High or Critical", rule.Severity))
	}
	if !rule.ObjectiveKind.Valid() {
		problems = append(problems, fmt.Sprintf("objective kind %q is not Participant, Activity or Program", rule.ObjectiveKind))
	}
	if len(problems) > 0 {
		return validationError(rule.Key, "invalid rule: %s", strings.Join(problems, "; "))
	}
	if reg != nil {
		_, _, err := reg.Bind(rule)
		return err
	}
	_, err := ParseRuleParams(rule)
	return err
}

// ValidateCatalog validates every rule and config entry, reporting all
// problems at once.
func ValidateCatalog(cat *Catalog, reg *Registry) error {
	var errs []error
	seen := make(map[string]bool, len(cat.Rules))
	for i := range cat.Rules {
		rule := &cat.Rules[i]
		if seen[rule.Key] {
			errs = append(errs, validationError(rule.Key, "duplicate rule key in catalog"))
			continue
		}
		seen[rule.Key] = true
		if err := ValidateRule(rule, reg); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range cat.Config {
		if strings.TrimSpace(c.Key) == "" {
			errs = append(errs, errors.Newf("config entry without key").
				Component("catalog").
				Category(errors.CategoryValidation).
				Build())
		}
	}
	return errors.Join(errs...)
}

// ImportCatalog validates cat and writes it through the repositories. Nothing
// is written when validation fails.
func ImportCatalog(ctx context.Context, rules repository.RuleRepository, configs repository.ConfigRepository, cat *Catalog, reg *Registry, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	if err := ValidateCatalog(cat, reg); err != nil {
		return res, err
	}

	for i := range cat.Rules {
		rule := cat.Rules[i]
		existing, err := rules.GetRuleByKey(ctx, rule.Key)
		switch {
		case errors.Is(err, repository.ErrRuleNotFound):
			if err := rules.CreateRule(ctx, &rule); err != nil {
				return res, fmt.Errorf("failed to create rule %s: %w", rule.Key, err)
			}
			res.RulesCreated++
			continue
		case err != nil:
			return res, err
		}
		if !opts.Overwrite || sameRule(existing, &rule) {
			res.RulesUnchanged++
			continue
		}
		rule.ID = existing.ID
		if err := rules.UpdateRule(ctx, &rule); err != nil {
			return res, fmt.Errorf("failed to update rule %s: %w", rule.Key, err)
		}
		res.RulesUpdated++
	}

	for _, c := range cat.Config {
		existing, err := configs.GetEntry(ctx, c.Key)
		switch {
		case errors.Is(err, repository.ErrConfigNotFound):
			if err := configs.UpsertEntry(ctx, &entities.ConfigEntry{Key: c.Key, Value: c.Value, Description: c.Description}); err != nil {
				return res, fmt.Errorf("failed to create config %s: %w", c.Key, err)
			}
			res.ConfigCreated++
			continue
		case err != nil:
			return res, err
		}
		if !opts.Overwrite || (existing.Value == c.Value && existing.Description == c.Description) {
			continue
		}
		if err := configs.UpsertEntry(ctx, &entities.ConfigEntry{Key: c.Key, Value: c.Value, Description: c.Description}); err != nil {
			return res, fmt.Errorf("failed to update config %s: %w", c.Key, err)
		}
		res.ConfigUpdated++
	}
	return res, nil
}

// sameRule compares the editable fields of two rule definitions.
func sameRule(a, b *entities.Rule) bool {
	if a.Name != b.Name || a.Description != b.Description || a.Severity != b.Severity ||
		a.ObjectiveKind != b.ObjectiveKind || a.Active != b.Active || a.Priority != b.Priority ||
		len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		pa, pb := a.Parameters[i], b.Parameters[i]
		if pa.Name != pb.Name || pa.Type != pb.Type || pa.Value != pb.Value {
			return false
		}
	}
	return true
}
