package repository

import (
	"context"
	"fmt"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"gorm.io/gorm"
)

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository creates a gorm-backed SubjectRepository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

type subjectRow struct {
	ProgramID      uint
	ActivityID     uint
	ParticipantID  uint
	PlanInstanceID *uint
}

func (r *subjectRepository) ListSubjects(ctx context.Context, kind entities.ObjectiveKind, programID *uint) ([]entities.Subject, error) {
	var (
		rows  []subjectRow
		query *gorm.DB
	)
	base := r.db.WithContext(ctx)

	switch kind {
	case entities.ObjectiveProgram:
		query = base.Table("programs AS p").
			Select("p.id AS program_id, p.plan_instance_id").
			Order("p.id ASC")
	case entities.ObjectiveActivity:
		query = base.Table("activities AS a").
			Select("p.id AS program_id, a.id AS activity_id, p.plan_instance_id").
			Joins("JOIN programs AS p ON p.id = a.program_id").
			Where("a.active = ?", true).
			Order("a.id ASC")
	case entities.ObjectiveParticipant:
		query = base.Table("enrollments AS e").
			Select("p.id AS program_id, a.id AS activity_id, e.participant_id, p.plan_instance_id").
			Joins("JOIN activities AS a ON a.id = e.activity_id").
			Joins("JOIN programs AS p ON p.id = a.program_id").
			Where("e.active = ? AND a.active = ?", true, true).
			Order("a.id ASC").Order("e.participant_id ASC")
	default:
		return nil, fmt.Errorf("failed to list subjects: unknown objective kind %q", kind)
	}

	query = query.Where("p.inference_enabled = ?", true)
	if programID != nil {
		query = query.Where("p.id = ?", *programID)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, dbError(fmt.Sprintf("list %s subjects", kind), err)
	}

	subjects := make([]entities.Subject, 0, len(rows))
	for _, row := range rows {
		s := entities.Subject{Kind: kind, ProgramID: row.ProgramID, PlanInstanceID: row.PlanInstanceID}
		if kind != entities.ObjectiveProgram {
			activityID := row.ActivityID
			s.ActivityID = &activityID
		}
		if kind == entities.ObjectiveParticipant {
			participantID := row.ParticipantID
			s.ParticipantID = &participantID
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}
