package entities

import "time"

// ConfigEntry is a global key/value setting consulted by rule triggers. The
// foreign key from its overrides restricts deleting an entry that is still
// shadowed for some program.
type ConfigEntry struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Key         string           `gorm:"size:100;not null;uniqueIndex" json:"key"`
	Value       string           `gorm:"size:1000;not null" json:"value"`
	Description string           `gorm:"size:1000;default:''" json:"description"`
	Version     int              `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Overrides   []ConfigOverride `gorm:"foreignKey:Key;references:Key;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName returns the table name for GORM.
func (ConfigEntry) TableName() string {
	return "config_entries"
}

// ConfigOverride shadows a ConfigEntry for a single program.
type ConfigOverride struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProgramID uint      `gorm:"not null;uniqueIndex:idx_config_overrides_program_key,priority:1" json:"program_id"`
	Key       string    `gorm:"size:100;not null;index;uniqueIndex:idx_config_overrides_program_key,priority:2" json:"key"`
	Value     string    `gorm:"size:1000;not null" json:"value"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (ConfigOverride) TableName() string {
	return "config_overrides"
}
