package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a gorm-backed AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// FindOpenAlert returns the Open alert for the rule and subject, or nil if none.
func (r *alertRepository) FindOpenAlert(ctx context.Context, ruleID uint, subjectKey string) (*entities.Alert, error) {
	var alerts []entities.Alert
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND subject_key = ? AND state = ?", ruleID, subjectKey, entities.AlertOpen).
		Limit(1).
		Find(&alerts).Error
	if err != nil {
		return nil, dbError("find open alert", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return &alerts[0], nil
}

// InsertAlert stamps lifecycle columns and inserts the alert in one statement.
func (r *alertRepository) InsertAlert(ctx context.Context, alert *entities.Alert) error {
	alert.ID = 0
	alert.State = entities.AlertOpen
	openKey := alert.SubjectKey
	alert.OpenKey = &openKey
	alert.Version = uuid.NewString()
	alert.StateChangedAt = nil

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(alert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(ErrDuplicateOpenAlert).
				Component("datastore").
				Category(errors.CategoryConflict).
				Context("rule_id", alert.RuleID).
				Context("subject", alert.SubjectKey).
				Build()
		}
		return dbError("insert alert", err)
	}
	return nil
}

// ChangeState applies a guarded transition. Checks run in order: existence,
// concurrency token, then lifecycle rules.
func (r *alertRepository) ChangeState(ctx context.Context, id uint, change StateChange) (*entities.Alert, error) {
	var updated entities.Alert
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.Alert
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(ErrAlertNotFound, "alert_id", id)
			}
			return dbError(fmt.Sprintf("load alert %d", id), err)
		}
		if current.Version != change.ExpectedVersion {
			return conflict(id)
		}
		if !current.State.CanTransitionTo(change.NewState) {
			return errors.New(ErrInvalidTransition).
				Component("datastore").
				Category(errors.CategoryInvalidTransition).
				Context("alert_id", id).
				Context("from", current.State).
				Context("to", change.NewState).
				Build()
		}

		at := change.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		next := uuid.NewString()
		result := tx.Model(&entities.Alert{}).
			Where("id = ? AND version = ?", id, change.ExpectedVersion).
			Updates(map[string]any{
				"state":            change.NewState,
				"comment":          change.Comment,
				"state_changed_at": at,
				"open_key":         nil,
				"version":          next,
			})
		if result.Error != nil {
			return dbError(fmt.Sprintf("update alert %d", id), result.Error)
		}
		if result.RowsAffected == 0 {
			return conflict(id)
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func conflict(id uint) error {
	return errors.New(ErrAlertConflict).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("alert_id", id).
		Build()
}

// GetAlert returns one alert.
func (r *alertRepository) GetAlert(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ErrAlertNotFound, "alert_id", id)
		}
		return nil, dbError(fmt.Sprintf("get alert %d", id), err)
	}
	return &alert, nil
}

func (r *alertRepository) filtered(ctx context.Context, filter AlertFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entities.Alert{})
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.ProgramID != nil {
		query = query.Where("program_id = ?", *filter.ProgramID)
	}
	if filter.RuleID != nil {
		query = query.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.From != nil {
		query = query.Where("generated_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("generated_at <= ?", *filter.To)
	}
	return query
}

// ListAlerts returns alerts matching the filter, newest first.
func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.filtered(ctx, filter).Order("generated_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, dbError("list alerts", err)
	}
	return alerts, nil
}

// CountAlerts counts alerts matching the filter, ignoring pagination.
func (r *alertRepository) CountAlerts(ctx context.Context, filter AlertFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, dbError("count alerts", err)
	}
	return count, nil
}
