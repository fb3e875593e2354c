package entities

import "time"

// Severity is the alert severity a rule assigns to the alerts it raises.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank orders severities from least to most severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// ObjectiveKind selects the subject population a rule is evaluated against.
type ObjectiveKind string

const (
	ObjectiveParticipant ObjectiveKind = "Participant"
	ObjectiveActivity    ObjectiveKind = "Activity"
	ObjectiveProgram     ObjectiveKind = "Program"
)

// Valid reports whether k is a known objective kind.
func (k ObjectiveKind) Valid() bool {
	switch k {
	case ObjectiveParticipant, ObjectiveActivity, ObjectiveProgram:
		return true
	}
	return false
}

// Rule is a configurable alerting condition scoped to one objective kind.
// Lower Priority values are evaluated first; ties are broken by Key.
type Rule struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Key           string          `gorm:"size:100;not null;uniqueIndex" json:"key" yaml:"key"`
	Name          string          `gorm:"size:255;not null" json:"name" yaml:"name"`
	Description   string          `gorm:"size:1000;default:''" json:"description" yaml:"description"`
	Severity      Severity        `gorm:"size:20;not null" json:"severity" yaml:"severity"`
	ObjectiveKind ObjectiveKind   `gorm:"size:20;not null;index" json:"objective_kind" yaml:"objective_kind"`
	Active        bool            `gorm:"not null;index" json:"active" yaml:"active"`
	Priority      int             `gorm:"not null" json:"priority" yaml:"priority"`
	Version       int             `gorm:"not null;default:1" json:"version" yaml:"-"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at" yaml:"-"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at" yaml:"-"`
	Parameters    []RuleParameter `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"parameters" yaml:"parameters"`
}

// TableName returns the table name for GORM.
func (Rule) TableName() string {
	return "rules"
}

// Param returns the parameter with the given name.
func (r *Rule) Param(name string) (RuleParameter, bool) {
	for i := range r.Parameters {
		if r.Parameters[i].Name == name {
			return r.Parameters[i], true
		}
	}
	return RuleParameter{}, false
}
