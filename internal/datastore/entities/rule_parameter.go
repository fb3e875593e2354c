package entities

// ParamType is the declared type of a rule parameter's raw value.
type ParamType string

const (
	ParamInteger ParamType = "Integer"
	ParamDecimal ParamType = "Decimal"
	ParamBoolean ParamType = "Boolean"
	ParamText    ParamType = "Text"
)

// Valid reports whether t is a known parameter type.
func (t ParamType) Valid() bool {
	switch t {
	case ParamInteger, ParamDecimal, ParamBoolean, ParamText:
		return true
	}
	return false
}

// RuleParameter is a named, typed value owned by a single rule.
type RuleParameter struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	RuleID    uint      `gorm:"not null;uniqueIndex:idx_rule_parameters_rule_name,priority:1" json:"rule_id" yaml:"-"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_rule_parameters_rule_name,priority:2" json:"name" yaml:"name"`
	Type      ParamType `gorm:"size:20;not null" json:"type" yaml:"type"`
	Value     string    `gorm:"size:500;not null;default:''" json:"value" yaml:"value"`
	SortOrder int       `gorm:"default:0" json:"sort_order" yaml:"-"`
}

// TableName returns the table name for GORM.
func (RuleParameter) TableName() string {
	return "rule_parameters"
}
