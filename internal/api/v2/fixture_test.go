package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ngoprog/alertengine/internal/alerting"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiFixture struct {
	echo     *echo.Echo
	ctrl     *Controller
	db       *gorm.DB
	rules    repository.RuleRepository
	alerts   repository.AlertRepository
	configs  repository.ConfigRepository
	registry *prometheus.Registry
}

// newAPIFixture wires the controller over a migrated in-memory database with
// the default catalog seeded.
func newAPIFixture(t *testing.T, mutate ...func(*conf.Settings, *Deps)) *apiFixture {
	t.Helper()
	mgr, err := datastore.NewManager(datastore.Config{Type: datastore.TypeSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	db := mgr.DB()
	f := &apiFixture{
		echo:     echo.New(),
		db:       db,
		rules:    repository.NewRuleRepository(db),
		alerts:   repository.NewAlertRepository(db),
		configs:  repository.NewConfigRepository(db),
		registry: prometheus.NewRegistry(),
	}
	log := logger.Discard()
	reg := alerting.DefaultRegistry()
	require.NoError(t, alerting.SeedDefaults(t.Context(), f.rules, f.configs, reg, log))

	m := metrics.NewAlertingMetrics(f.registry)
	engine := alerting.NewEngine(alerting.EngineDeps{
		Rules:    f.rules,
		Subjects: repository.NewSubjectRepository(db),
		Features: repository.NewFeatureRepository(db),
		Alerts:   f.alerts,
		Config:   f.configs,
	}, log, alerting.WithRegistry(reg), alerting.WithMetrics(m))

	settings := &conf.Settings{}
	settings.Alerting.RecentAlerts = 10
	deps := Deps{
		Engine:    engine,
		Lifecycle: alerting.NewLifecycle(f.alerts, m, log),
		Rules:     f.rules,
		Configs:   f.configs,
		Registry:  reg,
		Gatherer:  f.registry,
	}
	for _, fn := range mutate {
		fn(settings, &deps)
	}
	f.ctrl = New(f.echo, settings, deps, log)
	return f
}

// seedProgram creates program 1 with activity 10. Participant 100 misses the
// four March 2024 sessions, participant 101 attends them, and the plan is
// 80% executed.
func (f *apiFixture) seedProgram(t *testing.T) {
	t.Helper()
	db := f.db
	require.NoError(t, db.Create(&entities.Program{ID: 1, Name: "Education", InferenceEnabled: true}).Error)
	require.NoError(t, db.Create(&entities.Activity{ID: 10, ProgramID: 1, Name: "Reading", Active: true}).Error)
	require.NoError(t, db.Create(&[]entities.Participant{{ID: 100, Name: "Ana"}, {ID: 101, Name: "Luis"}}).Error)
	require.NoError(t, db.Create(&[]entities.Enrollment{
		{ParticipantID: 100, ActivityID: 10, Active: true},
		{ParticipantID: 101, ActivityID: 10, Active: true},
	}).Error)
	var records []entities.AttendanceRecord
	for d := 11; d <= 14; d++ {
		session := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		records = append(records,
			entities.AttendanceRecord{ParticipantID: 100, ActivityID: 10, SessionDate: session, Present: false},
			entities.AttendanceRecord{ParticipantID: 101, ActivityID: 10, SessionDate: session, Present: true},
		)
	}
	require.NoError(t, db.Create(&records).Error)
	require.NoError(t, db.Create(&entities.PlanMetric{ProgramID: 1, Period: "2024-03", Planned: 10, Executed: 8}).Error)
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (f *apiFixture) evaluate(t *testing.T, body EvaluateBody) EvaluateResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v2/alerts/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[EvaluateResponse](t, rec)
}

type evaluatorFunc func(req alerting.EvaluateRequest) (alerting.RunSummary, error)

func (fn evaluatorFunc) Evaluate(_ context.Context, req alerting.EvaluateRequest) (alerting.RunSummary, error) {
	return fn(req)
}
