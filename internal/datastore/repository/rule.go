package repository

import (
	"context"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// RuleRepository handles rule catalog CRUD.
type RuleRepository interface {
	ListRules(ctx context.Context, filter RuleFilter) ([]entities.Rule, error)
	GetRule(ctx context.Context, id uint) (*entities.Rule, error)
	GetRuleByKey(ctx context.Context, key string) (*entities.Rule, error)
	CreateRule(ctx context.Context, rule *entities.Rule) error
	UpdateRule(ctx context.Context, rule *entities.Rule) error
	DeleteRule(ctx context.Context, id uint) error
	ToggleRule(ctx context.Context, id uint, active bool) error

	// ListActiveRules returns active rules ordered by priority, then key.
	ListActiveRules(ctx context.Context) ([]entities.Rule, error)
}

// RuleFilter controls rule listing queries.
type RuleFilter struct {
	ObjectiveKind entities.ObjectiveKind
	Active        *bool
}
