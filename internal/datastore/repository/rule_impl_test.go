package repository

import (
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := t.Context()

	rule := &entities.Rule{
		Key:           "CAMPO_POA_FUERA_DE_RANGO",
		Name:          "POA field out of range",
		Severity:      entities.SeverityCritical,
		ObjectiveKind: entities.ObjectiveActivity,
		Active:        true,
		Priority:      10,
		Parameters: []entities.RuleParameter{
			{Name: "CAMPO", Type: entities.ParamText, Value: "beneficiarios"},
			{Name: "MINIMO", Type: entities.ParamDecimal, Value: "10"},
			{Name: "MAXIMO", Type: entities.ParamDecimal, Value: "50.5"},
		},
	}
	require.NoError(t, repo.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)
	assert.Equal(t, 1, rule.Version)

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Key, got.Key)
	require.Len(t, got.Parameters, 3)
	assert.Equal(t, "CAMPO", got.Parameters[0].Name)
	assert.Equal(t, "MAXIMO", got.Parameters[2].Name)

	byKey, err := repo.GetRuleByKey(ctx, "CAMPO_POA_FUERA_DE_RANGO")
	require.NoError(t, err)
	assert.Equal(t, rule.ID, byKey.ID)
}

func TestRuleRepository_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)

	_, err := repo.GetRule(t.Context(), 999)
	require.ErrorIs(t, err, ErrRuleNotFound)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	_, err = repo.GetRuleByKey(t.Context(), "NOPE")
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleRepository_DuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)

	createTestRule(t, repo, "INASISTENCIA_CONSECUTIVA", entities.ObjectiveParticipant, 1)
	dup := &entities.Rule{Key: "INASISTENCIA_CONSECUTIVA", Name: "dup", Severity: entities.SeverityInfo, ObjectiveKind: entities.ObjectiveParticipant}
	require.ErrorIs(t, repo.CreateRule(t.Context(), dup), ErrRuleKeyTaken)
}

func TestRuleRepository_UpdateReplacesParametersAndBumpsVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "INASISTENCIA_CONSECUTIVA", entities.ObjectiveParticipant, 1)
	rule.Name = "Renamed"
	rule.Parameters = []entities.RuleParameter{
		{Name: "UMBRAL_AUSENCIAS", Type: entities.ParamInteger, Value: "4"},
		{Name: "EXTRA", Type: entities.ParamBoolean, Value: "true"},
	}
	require.NoError(t, repo.UpdateRule(ctx, rule))

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Parameters, 2)
	assert.Equal(t, "4", got.Parameters[0].Value)

	var count int64
	require.NoError(t, db.Model(&entities.RuleParameter{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "old parameter rows must be removed")
}

func TestRuleRepository_UpdateMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)

	err := repo.UpdateRule(t.Context(), &entities.Rule{ID: 42, Key: "X", Name: "X"})
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleRepository_ListActiveRules_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := t.Context()

	createTestRule(t, repo, "B_RULE", entities.ObjectiveParticipant, 5)
	createTestRule(t, repo, "A_RULE", entities.ObjectiveParticipant, 5)
	createTestRule(t, repo, "Z_FIRST", entities.ObjectiveProgram, 1)
	inactive := createTestRule(t, repo, "INACTIVE", entities.ObjectiveProgram, 0)
	require.NoError(t, repo.ToggleRule(ctx, inactive.ID, false))

	rules, err := repo.ListActiveRules(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(rules))
	for _, r := range rules {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"Z_FIRST", "A_RULE", "B_RULE"}, keys)

	programRules, err := repo.ListRules(ctx, RuleFilter{ObjectiveKind: entities.ObjectiveProgram})
	require.NoError(t, err)
	assert.Len(t, programRules, 2)
}

func TestRuleRepository_ToggleBumpsVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := t.Context()

	rule := createTestRule(t, repo, "R", entities.ObjectiveProgram, 1)
	require.NoError(t, repo.ToggleRule(ctx, rule.ID, false))

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 2, got.Version)

	require.ErrorIs(t, repo.ToggleRule(ctx, 999, true), ErrRuleNotFound)
}

func TestRuleRepository_DeleteRejectedWhileAlertsExist(t *testing.T) {
	db := setupTestDB(t)
	rules := NewRuleRepository(db)
	alerts := NewAlertRepository(db)
	ctx := t.Context()

	used := createTestRule(t, rules, "USED", entities.ObjectiveParticipant, 1)
	unused := createTestRule(t, rules, "UNUSED", entities.ObjectiveParticipant, 1)
	require.NoError(t, alerts.InsertAlert(ctx, newTestAlert(used, "A1/U1", timeAt(2025, 3, 1))))

	require.ErrorIs(t, rules.DeleteRule(ctx, used.ID), ErrRuleInUse)
	require.NoError(t, rules.DeleteRule(ctx, unused.ID))
	require.ErrorIs(t, rules.DeleteRule(ctx, unused.ID), ErrRuleNotFound)

	var params int64
	require.NoError(t, db.Model(&entities.RuleParameter{}).Where("rule_id = ?", unused.ID).Count(&params).Error)
	assert.Zero(t, params)
}
