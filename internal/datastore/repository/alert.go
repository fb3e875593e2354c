package repository

import (
	"context"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// AlertRepository persists alerts and their lifecycle transitions.
type AlertRepository interface {
	// FindOpenAlert returns the Open alert for rule and subject key, or nil.
	FindOpenAlert(ctx context.Context, ruleID uint, subjectKey string) (*entities.Alert, error)
	// InsertAlert inserts a new Open alert. ErrDuplicateOpenAlert is returned
	// when another Open alert already holds the same rule and subject.
	InsertAlert(ctx context.Context, alert *entities.Alert) error
	ChangeState(ctx context.Context, id uint, change StateChange) (*entities.Alert, error)

	GetAlert(ctx context.Context, id uint) (*entities.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	CountAlerts(ctx context.Context, filter AlertFilter) (int64, error)
}

// StateChange is a guarded alert transition.
type StateChange struct {
	NewState        entities.AlertState
	Comment         *string
	ExpectedVersion string
	At              time.Time
}

// AlertFilter controls alert listing queries. Zero values are ignored.
type AlertFilter struct {
	State     entities.AlertState
	Severity  entities.Severity
	ProgramID *uint
	RuleID    *uint
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
