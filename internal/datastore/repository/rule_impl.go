package repository

import (
	"context"
	"fmt"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"gorm.io/gorm"
)

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a gorm-backed RuleRepository.
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) withParams(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Parameters", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, id ASC")
	})
}

// ListRules returns rules matching the filter, in evaluation order.
func (r *ruleRepository) ListRules(ctx context.Context, filter RuleFilter) ([]entities.Rule, error) {
	var rules []entities.Rule
	query := r.withParams(ctx)
	if filter.ObjectiveKind != "" {
		query = query.Where("objective_kind = ?", filter.ObjectiveKind)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if err := query.Order("priority ASC").Order("`key` ASC").Find(&rules).Error; err != nil {
		return nil, dbError("list rules", err)
	}
	return rules, nil
}

// GetRule returns one rule with its parameters.
func (r *ruleRepository) GetRule(ctx context.Context, id uint) (*entities.Rule, error) {
	var rule entities.Rule
	if err := r.withParams(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ErrRuleNotFound, "rule_id", id)
		}
		return nil, dbError(fmt.Sprintf("get rule %d", id), err)
	}
	return &rule, nil
}

// GetRuleByKey returns one rule by its stable key.
func (r *ruleRepository) GetRuleByKey(ctx context.Context, key string) (*entities.Rule, error) {
	var rule entities.Rule
	if err := r.withParams(ctx).Where("`key` = ?", key).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ErrRuleNotFound, "rule_key", key)
		}
		return nil, dbError(fmt.Sprintf("get rule %q", key), err)
	}
	return &rule, nil
}

// CreateRule inserts a rule with its parameters at version 1.
func (r *ruleRepository) CreateRule(ctx context.Context, rule *entities.Rule) error {
	rule.Version = 1
	for i := range rule.Parameters {
		rule.Parameters[i].SortOrder = i
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRuleKeyTaken
		}
		return dbError("create rule", err)
	}
	return nil
}

// UpdateRule replaces a rule and its parameters and bumps its version.
func (r *ruleRepository) UpdateRule(ctx context.Context, rule *entities.Rule) error {
	if rule.ID == 0 {
		return fmt.Errorf("failed to update rule: missing rule ID")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.Rule
		if err := tx.Select("id", "version", "created_at").First(&current, rule.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(ErrRuleNotFound, "rule_id", rule.ID)
			}
			return dbError("load rule", err)
		}
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&entities.RuleParameter{}).Error; err != nil {
			return dbError("delete old parameters", err)
		}
		// Zero out IDs so GORM inserts fresh parameter rows.
		for i := range rule.Parameters {
			rule.Parameters[i].ID = 0
			rule.Parameters[i].RuleID = rule.ID
			rule.Parameters[i].SortOrder = i
		}
		rule.Version = current.Version + 1
		rule.CreatedAt = current.CreatedAt
		if err := tx.Save(rule).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRuleKeyTaken
			}
			return dbError("update rule", err)
		}
		return nil
	})
}

// DeleteRule deletes a rule and its parameters. Rules referenced by alerts
// cannot be deleted since alerts are retained for audit; deactivate them instead.
func (r *ruleRepository) DeleteRule(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&entities.Alert{}).Where("rule_id = ?", id).Count(&refs).Error; err != nil {
			return dbError("count rule alerts", err)
		}
		if refs > 0 {
			return ErrRuleInUse
		}
		if err := tx.Where("rule_id = ?", id).Delete(&entities.RuleParameter{}).Error; err != nil {
			return dbError("delete rule parameters", err)
		}
		result := tx.Delete(&entities.Rule{}, id)
		if result.Error != nil {
			return dbError(fmt.Sprintf("delete rule %d", id), result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound(ErrRuleNotFound, "rule_id", id)
		}
		return nil
	})
}

// ToggleRule activates or deactivates a rule. Toggling is an edit, so the
// version is bumped.
func (r *ruleRepository) ToggleRule(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Rule{}).Where("id = ?", id).
		Updates(map[string]any{"active": active, "version": gorm.Expr("version + 1")})
	if result.Error != nil {
		return dbError(fmt.Sprintf("toggle rule %d", id), result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(ErrRuleNotFound, "rule_id", id)
	}
	return nil
}

// ListActiveRules returns active rules in evaluation order.
func (r *ruleRepository) ListActiveRules(ctx context.Context) ([]entities.Rule, error) {
	active := true
	return r.ListRules(ctx, RuleFilter{Active: &active})
}
