package alerting

import (
	"context"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// RuleSource supplies the active rule catalog.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]entities.Rule, error)
}

// SubjectSource resolves eligible subjects for an objective kind. Subjects
// of inference-disabled programs must not be returned.
type SubjectSource interface {
	ListSubjects(ctx context.Context, kind entities.ObjectiveKind, programID *uint) ([]entities.Subject, error)
}

// FeatureProvider computes derived signals from operational history as of the
// dates passed in.
type FeatureProvider interface {
	ConsecutiveAbsences(ctx context.Context, participantID, activityID uint, asOf time.Time) (int, error)
	PlanVsExecuted(ctx context.Context, programID uint, yearMonth string) (planned, executed int, err error)
	FieldDecimalValue(ctx context.Context, instanceID uint, fieldKey string, programID, activityID, participantID *uint) (*float64, error)
	AttendancePercentage(ctx context.Context, participantID, programID uint, from, to time.Time) (float64, error)
}

// AlertWriter is the narrow persistence contract the engine writes through.
type AlertWriter interface {
	FindOpenAlert(ctx context.Context, ruleID uint, subjectKey string) (*entities.Alert, error)
	InsertAlert(ctx context.Context, alert *entities.Alert) error
}

// ConfigSource reads global configuration entries and program overrides.
type ConfigSource interface {
	GetEntry(ctx context.Context, key string) (*entities.ConfigEntry, error)
	GetOverride(ctx context.Context, programID uint, key string) (*entities.ConfigOverride, error)
	LoadAll(ctx context.Context) ([]entities.ConfigEntry, []entities.ConfigOverride, error)
}

// Notifier delivers newly created alerts to an external sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert *entities.Alert) error
}
