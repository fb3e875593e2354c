package repository

import (
	"context"
	"fmt"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"gorm.io/gorm"
)

type configRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a gorm-backed ConfigRepository.
func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) ListEntries(ctx context.Context) ([]entities.ConfigEntry, error) {
	var entries []entities.ConfigEntry
	if err := r.db.WithContext(ctx).Order("`key` ASC").Find(&entries).Error; err != nil {
		return nil, dbError("list config entries", err)
	}
	return entries, nil
}

func (r *configRepository) GetEntry(ctx context.Context, key string) (*entities.ConfigEntry, error) {
	var entry entities.ConfigEntry
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ErrConfigNotFound, "key", key)
		}
		return nil, dbError(fmt.Sprintf("get config entry %q", key), err)
	}
	return &entry, nil
}

// UpsertEntry creates the entry or updates its value and description, bumping
// the version.
func (r *configRepository) UpsertEntry(ctx context.Context, entry *entities.ConfigEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.ConfigEntry
		err := tx.Where("`key` = ?", entry.Key).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry.ID = 0
			entry.Version = 1
			if err := tx.Create(entry).Error; err != nil {
				return dbError("create config entry", err)
			}
			return nil
		case err != nil:
			return dbError("load config entry", err)
		}
		entry.ID = current.ID
		entry.Version = current.Version + 1
		entry.CreatedAt = current.CreatedAt
		if err := tx.Model(&current).Updates(map[string]any{
			"value":       entry.Value,
			"description": entry.Description,
			"version":     entry.Version,
		}).Error; err != nil {
			return dbError("update config entry", err)
		}
		return nil
	})
}

// DeleteEntry removes a global entry. Entries shadowed by program overrides
// cannot be deleted.
func (r *configRepository) DeleteEntry(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&entities.ConfigOverride{}).Where("`key` = ?", key).Count(&refs).Error; err != nil {
			return dbError("count config overrides", err)
		}
		if refs > 0 {
			return ErrConfigInUse
		}
		result := tx.Where("`key` = ?", key).Delete(&entities.ConfigEntry{})
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
				return ErrConfigInUse
			}
			return dbError("delete config entry", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound(ErrConfigNotFound, "key", key)
		}
		return nil
	})
}

// ListOverrides returns overrides for one program, or all of them when
// programID is nil.
func (r *configRepository) ListOverrides(ctx context.Context, programID *uint) ([]entities.ConfigOverride, error) {
	var overrides []entities.ConfigOverride
	query := r.db.WithContext(ctx).Order("program_id ASC").Order("`key` ASC")
	if programID != nil {
		query = query.Where("program_id = ?", *programID)
	}
	if err := query.Find(&overrides).Error; err != nil {
		return nil, dbError("list config overrides", err)
	}
	return overrides, nil
}

func (r *configRepository) GetOverride(ctx context.Context, programID uint, key string) (*entities.ConfigOverride, error) {
	var override entities.ConfigOverride
	err := r.db.WithContext(ctx).Where("program_id = ? AND `key` = ?", programID, key).First(&override).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ErrConfigNotFound, "key", key)
		}
		return nil, dbError("get config override", err)
	}
	return &override, nil
}

// UpsertOverride sets the program's value for an existing global key.
func (r *configRepository) UpsertOverride(ctx context.Context, override *entities.ConfigOverride) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var base int64
		if err := tx.Model(&entities.ConfigEntry{}).Where("`key` = ?", override.Key).Count(&base).Error; err != nil {
			return dbError("check config entry", err)
		}
		if base == 0 {
			return notFound(ErrConfigNotFound, "key", override.Key)
		}

		var current entities.ConfigOverride
		err := tx.Where("program_id = ? AND `key` = ?", override.ProgramID, override.Key).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			override.ID = 0
			override.Version = 1
			if err := tx.Create(override).Error; err != nil {
				return dbError("create config override", err)
			}
			return nil
		case err != nil:
			return dbError("load config override", err)
		}
		override.ID = current.ID
		override.Version = current.Version + 1
		override.CreatedAt = current.CreatedAt
		if err := tx.Model(&current).Updates(map[string]any{
			"value":   override.Value,
			"version": override.Version,
		}).Error; err != nil {
			return dbError("update config override", err)
		}
		return nil
	})
}

func (r *configRepository) DeleteOverride(ctx context.Context, programID uint, key string) error {
	result := r.db.WithContext(ctx).Where("program_id = ? AND `key` = ?", programID, key).Delete(&entities.ConfigOverride{})
	if result.Error != nil {
		return dbError("delete config override", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(ErrConfigNotFound, "key", key)
	}
	return nil
}

// LoadAll reads entries and overrides under one transaction so a run sees a
// consistent configuration.
func (r *configRepository) LoadAll(ctx context.Context) ([]entities.ConfigEntry, []entities.ConfigOverride, error) {
	var (
		entries   []entities.ConfigEntry
		overrides []entities.ConfigOverride
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Find(&entries).Error; err != nil {
			return dbError("load config entries", err)
		}
		if err := tx.Find(&overrides).Error; err != nil {
			return dbError("load config overrides", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, overrides, nil
}
