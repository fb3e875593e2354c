package entities

import "time"

// AlertState is the lifecycle state of an alert.
type AlertState string

const (
	AlertOpen      AlertState = "Open"
	AlertResolved  AlertState = "Resolved"
	AlertDismissed AlertState = "Dismissed"
)

// Valid reports whether s is a known state.
func (s AlertState) Valid() bool {
	switch s {
	case AlertOpen, AlertResolved, AlertDismissed:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s AlertState) Terminal() bool {
	return s == AlertResolved || s == AlertDismissed
}

// CanTransitionTo reports whether the lifecycle allows s -> next.
// Open is the only non-terminal state and may only move to a terminal one.
func (s AlertState) CanTransitionTo(next AlertState) bool {
	return s == AlertOpen && next.Terminal()
}

// Alert is raised by the engine when a rule fires for a subject. Severity,
// RuleKey and Message are frozen at generation time. OpenKey mirrors SubjectKey
// while the alert is Open and is cleared on close, so the unique index on
// (rule_id, open_key) allows at most one open alert per rule and subject.
type Alert struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	RuleID         uint       `gorm:"not null;index;uniqueIndex:idx_alerts_rule_open,priority:1" json:"rule_id"`
	RuleKey        string     `gorm:"size:100;not null" json:"rule_key"`
	Message        string     `gorm:"size:2000;not null" json:"message"`
	Severity       Severity   `gorm:"size:20;not null;index" json:"severity"`
	State          AlertState `gorm:"size:20;not null;index" json:"state"`
	GeneratedAt    time.Time  `gorm:"not null;index" json:"generated_at"`
	CutoffDate     time.Time  `gorm:"not null" json:"cutoff_date"`
	ProgramID      *uint      `gorm:"index" json:"program_id,omitempty"`
	ActivityID     *uint      `gorm:"index" json:"activity_id,omitempty"`
	ParticipantID  *uint      `gorm:"index" json:"participant_id,omitempty"`
	SubjectKey     string     `gorm:"size:200;not null;index" json:"subject_key"`
	OpenKey        *string    `gorm:"size:200;uniqueIndex:idx_alerts_rule_open,priority:2" json:"-"`
	Version        string     `gorm:"size:36;not null" json:"concurrency_token"`
	Comment        *string    `gorm:"size:2000" json:"comment,omitempty"`
	StateChangedAt *time.Time `json:"state_changed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Rule           Rule       `gorm:"foreignKey:RuleID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}
