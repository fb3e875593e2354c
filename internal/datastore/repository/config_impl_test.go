package repository

import (
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRepository_UpsertEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfigRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.UpsertEntry(ctx, &entities.ConfigEntry{Key: "UMBRAL_AUSENCIAS", Value: "3"}))
	require.NoError(t, repo.UpsertEntry(ctx, &entities.ConfigEntry{Key: "UMBRAL_AUSENCIAS", Value: "4", Description: "absences"}))

	got, err := repo.GetEntry(ctx, "UMBRAL_AUSENCIAS")
	require.NoError(t, err)
	assert.Equal(t, "4", got.Value)
	assert.Equal(t, "absences", got.Description)
	assert.Equal(t, 2, got.Version)

	_, err = repo.GetEntry(ctx, "MISSING")
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfigRepository_OverrideRequiresEntry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfigRepository(db)

	err := repo.UpsertOverride(t.Context(), &entities.ConfigOverride{ProgramID: 7, Key: "UMBRAL_AUSENCIAS", Value: "5"})
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfigRepository_Overrides(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfigRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.UpsertEntry(ctx, &entities.ConfigEntry{Key: "UMBRAL_AUSENCIAS", Value: "3"}))
	require.NoError(t, repo.UpsertOverride(ctx, &entities.ConfigOverride{ProgramID: 7, Key: "UMBRAL_AUSENCIAS", Value: "5"}))
	require.NoError(t, repo.UpsertOverride(ctx, &entities.ConfigOverride{ProgramID: 7, Key: "UMBRAL_AUSENCIAS", Value: "6"}))
	require.NoError(t, repo.UpsertOverride(ctx, &entities.ConfigOverride{ProgramID: 8, Key: "UMBRAL_AUSENCIAS", Value: "2"}))

	got, err := repo.GetOverride(ctx, 7, "UMBRAL_AUSENCIAS")
	require.NoError(t, err)
	assert.Equal(t, "6", got.Value)
	assert.Equal(t, 2, got.Version)

	forSeven, err := repo.ListOverrides(ctx, uintPtr(7))
	require.NoError(t, err)
	assert.Len(t, forSeven, 1)

	all, err := repo.ListOverrides(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	entries, overrides, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, overrides, 2)
}

func TestConfigRepository_DeleteEntryRejectedWhileOverridden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConfigRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.UpsertEntry(ctx, &entities.ConfigEntry{Key: "K", Value: "1"}))
	require.NoError(t, repo.UpsertOverride(ctx, &entities.ConfigOverride{ProgramID: 7, Key: "K", Value: "2"}))

	require.ErrorIs(t, repo.DeleteEntry(ctx, "K"), ErrConfigInUse)

	require.NoError(t, repo.DeleteOverride(ctx, 7, "K"))
	require.ErrorIs(t, repo.DeleteOverride(ctx, 7, "K"), ErrConfigNotFound)
	require.NoError(t, repo.DeleteEntry(ctx, "K"))
	require.ErrorIs(t, repo.DeleteEntry(ctx, "K"), ErrConfigNotFound)
}

func TestConfigSchema_OverrideForeignKey(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()

	require.NoError(t, db.WithContext(ctx).Create(&entities.ConfigEntry{Key: "K", Value: "1", Version: 1}).Error,
		"entries must insert without any override present")
	require.NoError(t, db.WithContext(ctx).Create(&entities.ConfigOverride{ProgramID: 7, Key: "K", Value: "2", Version: 1}).Error)

	err := db.WithContext(ctx).Create(&entities.ConfigOverride{ProgramID: 7, Key: "MISSING", Value: "2", Version: 1}).Error
	require.Error(t, err, "override must reference an existing entry")

	err = db.WithContext(ctx).Where("`key` = ?", "K").Delete(&entities.ConfigEntry{}).Error
	require.Error(t, err, "database must restrict deleting a shadowed entry")

	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&entities.ConfigEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
