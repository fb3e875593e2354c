package repository

import (
	"testing"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB creates a migrated in-memory SQLite database. The manager pins a
// single connection so every query sees the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	mgr, err := datastore.NewManager(datastore.Config{Type: datastore.TypeSQLite, Path: ":memory:"})
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(), "failed to migrate tables")
	return mgr.DB()
}

func createTestRule(t *testing.T, repo RuleRepository, key string, kind entities.ObjectiveKind, priority int) *entities.Rule {
	t.Helper()
	rule := &entities.Rule{
		Key:           key,
		Name:          key,
		Severity:      entities.SeverityHigh,
		ObjectiveKind: kind,
		Active:        true,
		Priority:      priority,
		Parameters: []entities.RuleParameter{
			{Name: "UMBRAL_AUSENCIAS", Type: entities.ParamInteger, Value: "3"},
		},
	}
	require.NoError(t, repo.CreateRule(t.Context(), rule))
	return rule
}

func newTestAlert(rule *entities.Rule, subjectKey string, generatedAt time.Time) *entities.Alert {
	program := uint(1)
	return &entities.Alert{
		RuleID:      rule.ID,
		RuleKey:     rule.Key,
		Message:     "test alert",
		Severity:    rule.Severity,
		GeneratedAt: generatedAt,
		CutoffDate:  generatedAt.Truncate(24 * time.Hour),
		ProgramID:   &program,
		SubjectKey:  subjectKey,
	}
}

func uintPtr(v uint) *uint { return &v }
