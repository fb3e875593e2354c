package repository

import (
	"context"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
)

// SubjectRepository resolves the eligible subjects of an objective kind.
type SubjectRepository interface {
	// ListSubjects returns subjects of kind belonging to inference-enabled
	// programs, optionally restricted to one program, in stable id order.
	ListSubjects(ctx context.Context, kind entities.ObjectiveKind, programID *uint) ([]entities.Subject, error)
}

// FeatureRepository computes derived signals from operational history. Every
// computation is "as of" the dates passed in, never wall-clock time.
type FeatureRepository interface {
	ConsecutiveAbsences(ctx context.Context, participantID, activityID uint, asOf time.Time) (int, error)
	PlanVsExecuted(ctx context.Context, programID uint, yearMonth string) (planned, executed int, err error)
	FieldDecimalValue(ctx context.Context, instanceID uint, fieldKey string, programID, activityID, participantID *uint) (*float64, error)
	AttendancePercentage(ctx context.Context, participantID, programID uint, from, to time.Time) (float64, error)
}
