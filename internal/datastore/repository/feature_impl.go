package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"gorm.io/gorm"
)

type featureRepository struct {
	db *gorm.DB
}

// NewFeatureRepository creates a gorm-backed FeatureRepository.
func NewFeatureRepository(db *gorm.DB) FeatureRepository {
	return &featureRepository{db: db}
}

// endOfDay returns the exclusive upper bound for "on or before date".
func endOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// ConsecutiveAbsences counts the absences at the head of the participant's
// attendance history for the activity, newest session first. Only sessions
// after the latest attended one are counted.
func (r *featureRepository) ConsecutiveAbsences(ctx context.Context, participantID, activityID uint, asOf time.Time) (int, error) {
	history := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&entities.AttendanceRecord{}).
			Where("participant_id = ? AND activity_id = ? AND session_date < ?", participantID, activityID, endOfDay(asOf))
	}

	var lastPresent []entities.AttendanceRecord
	err := history().Where("present = ?", true).
		Order("session_date DESC").Order("id DESC").
		Limit(1).Find(&lastPresent).Error
	if err != nil {
		return 0, dbError("load last attended session", err)
	}

	query := history()
	if len(lastPresent) > 0 {
		last := lastPresent[0]
		query = query.Where("(session_date > ? OR (session_date = ? AND id > ?))", last.SessionDate, last.SessionDate, last.ID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, dbError("count consecutive absences", err)
	}
	return int(count), nil
}

// PlanVsExecuted sums planned and executed counts for the program and month.
func (r *featureRepository) PlanVsExecuted(ctx context.Context, programID uint, yearMonth string) (int, int, error) {
	var totals struct {
		Planned  int
		Executed int
	}
	err := r.db.WithContext(ctx).Model(&entities.PlanMetric{}).
		Select("COALESCE(SUM(planned), 0) AS planned, COALESCE(SUM(executed), 0) AS executed").
		Where("program_id = ? AND period = ?", programID, yearMonth).
		Scan(&totals).Error
	if err != nil {
		return 0, 0, dbError("load plan metrics", err)
	}
	return totals.Planned, totals.Executed, nil
}

// FieldDecimalValue returns the captured value of a POA field, scoped by the
// non-nil subject references, or nil when nothing was captured.
func (r *featureRepository) FieldDecimalValue(ctx context.Context, instanceID uint, fieldKey string, programID, activityID, participantID *uint) (*float64, error) {
	query := r.db.WithContext(ctx).Model(&entities.FieldValue{}).
		Where("instance_id = ? AND field_key = ?", instanceID, fieldKey)
	query = scopeColumn(query, "program_id", programID)
	query = scopeColumn(query, "activity_id", activityID)
	query = scopeColumn(query, "participant_id", participantID)

	var values []entities.FieldValue
	if err := query.Order("updated_at DESC").Order("id DESC").Limit(1).Find(&values).Error; err != nil {
		return nil, dbError("load field value", err)
	}
	if len(values) == 0 || strings.TrimSpace(values[0].Value) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(values[0].Value)
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, errors.Newf("field %q value %q is not a decimal", fieldKey, raw).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("instance_id", instanceID).
			Build()
	}
	return &v, nil
}

func scopeColumn(query *gorm.DB, column string, id *uint) *gorm.DB {
	if id == nil {
		return query
	}
	return query.Where(fmt.Sprintf("%s = ?", column), *id)
}

// AttendancePercentage is the share of sessions attended by the participant
// across the program's activities between from and to inclusive. A
// participant with no sessions in range is reported at 100.
func (r *featureRepository) AttendancePercentage(ctx context.Context, participantID, programID uint, from, to time.Time) (float64, error) {
	var totals struct {
		Sessions int64
		Attended int64
	}
	err := r.db.WithContext(ctx).Table("attendance_records AS ar").
		Select("COUNT(*) AS sessions, COALESCE(SUM(CASE WHEN ar.present THEN 1 ELSE 0 END), 0) AS attended").
		Joins("JOIN activities AS a ON a.id = ar.activity_id").
		Where("ar.participant_id = ? AND a.program_id = ?", participantID, programID).
		Where("ar.session_date >= ? AND ar.session_date < ?", startOfDay(from), endOfDay(to)).
		Scan(&totals).Error
	if err != nil {
		return 0, dbError("load attendance totals", err)
	}
	if totals.Sessions == 0 {
		return 100, nil
	}
	return float64(totals.Attended) * 100 / float64(totals.Sessions), nil
}

func startOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
