package entities

import "time"

// The entities below are the read side of the program-management data the
// feature provider and subject source query. Their CRUD lives elsewhere.

// Program groups activities. Programs with InferenceEnabled=false are never
// evaluated.
type Program struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	InferenceEnabled bool      `gorm:"not null" json:"inference_enabled"`
	PlanInstanceID   *uint     `json:"plan_instance_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Program) TableName() string { return "programs" }

// Activity belongs to a program.
type Activity struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProgramID uint   `gorm:"not null;index" json:"program_id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	Active    bool   `gorm:"not null" json:"active"`
}

// TableName returns the table name for GORM.
func (Activity) TableName() string { return "activities" }

// Participant is a beneficiary enrolled in one or more activities.
type Participant struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// TableName returns the table name for GORM.
func (Participant) TableName() string { return "participants" }

// Enrollment links a participant to an activity.
type Enrollment struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	ParticipantID uint `gorm:"not null;uniqueIndex:idx_enrollments_pair,priority:1" json:"participant_id"`
	ActivityID    uint `gorm:"not null;uniqueIndex:idx_enrollments_pair,priority:2" json:"activity_id"`
	Active        bool `gorm:"not null" json:"active"`
}

// TableName returns the table name for GORM.
func (Enrollment) TableName() string { return "enrollments" }

// AttendanceRecord is one participant's attendance at one activity session.
type AttendanceRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ParticipantID uint      `gorm:"not null;index:idx_attendance_participant_activity,priority:1" json:"participant_id"`
	ActivityID    uint      `gorm:"not null;index:idx_attendance_participant_activity,priority:2" json:"activity_id"`
	SessionDate   time.Time `gorm:"not null;index;index:idx_attendance_participant_activity,priority:3" json:"session_date"`
	Present       bool      `gorm:"not null" json:"present"`
}

// TableName returns the table name for GORM.
func (AttendanceRecord) TableName() string { return "attendance_records" }

// PlanMetric holds planned versus executed counts for a program and month.
// Period is stored as YYYY-MM.
type PlanMetric struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProgramID uint   `gorm:"not null;index:idx_plan_metrics_program_month,priority:1" json:"program_id"`
	Period    string `gorm:"size:7;not null;index:idx_plan_metrics_program_month,priority:2" json:"period"`
	Planned   int    `gorm:"not null;default:0" json:"planned"`
	Executed  int    `gorm:"not null;default:0" json:"executed"`
}

// TableName returns the table name for GORM.
func (PlanMetric) TableName() string { return "plan_metrics" }

// FieldValue is a captured POA template field value. Scope columns left nil
// mean the value is not bound to that level.
type FieldValue struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InstanceID    uint      `gorm:"not null;index:idx_field_values_instance_key,priority:1" json:"instance_id"`
	FieldKey      string    `gorm:"size:100;not null;index:idx_field_values_instance_key,priority:2" json:"field_key"`
	ProgramID     *uint     `json:"program_id,omitempty"`
	ActivityID    *uint     `json:"activity_id,omitempty"`
	ParticipantID *uint     `json:"participant_id,omitempty"`
	Value         string    `gorm:"size:500;not null" json:"value"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (FieldValue) TableName() string { return "field_values" }
