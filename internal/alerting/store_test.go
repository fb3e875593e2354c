package alerting

import (
	"testing"

	"github.com/ngoprog/alertengine/internal/datastore"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testStore bundles repositories over one migrated in-memory database.
type testStore struct {
	db       *gorm.DB
	rules    repository.RuleRepository
	alerts   repository.AlertRepository
	configs  repository.ConfigRepository
	subjects repository.SubjectRepository
	features repository.FeatureRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	mgr, err := datastore.NewManager(datastore.Config{Type: datastore.TypeSQLite, Path: ":memory:"})
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(), "failed to migrate tables")

	db := mgr.DB()
	return &testStore{
		db:       db,
		rules:    repository.NewRuleRepository(db),
		alerts:   repository.NewAlertRepository(db),
		configs:  repository.NewConfigRepository(db),
		subjects: repository.NewSubjectRepository(db),
		features: repository.NewFeatureRepository(db),
	}
}

func (s *testStore) engineDeps() EngineDeps {
	return EngineDeps{
		Rules:    s.rules,
		Subjects: s.subjects,
		Features: s.features,
		Alerts:   s.alerts,
		Config:   s.configs,
	}
}
