package repository

import (
	"context"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// ConfigRepository manages global configuration entries and per-program
// overrides.
type ConfigRepository interface {
	ListEntries(ctx context.Context) ([]entities.ConfigEntry, error)
	GetEntry(ctx context.Context, key string) (*entities.ConfigEntry, error)
	UpsertEntry(ctx context.Context, entry *entities.ConfigEntry) error
	DeleteEntry(ctx context.Context, key string) error

	ListOverrides(ctx context.Context, programID *uint) ([]entities.ConfigOverride, error)
	GetOverride(ctx context.Context, programID uint, key string) (*entities.ConfigOverride, error)
	UpsertOverride(ctx context.Context, override *entities.ConfigOverride) error
	DeleteOverride(ctx context.Context, programID uint, key string) error

	// LoadAll returns every entry and override in one read transaction.
	LoadAll(ctx context.Context) ([]entities.ConfigEntry, []entities.ConfigOverride, error)
}
