// Package conf loads and validates the alert engine settings.
package conf

import (
	"fmt"
	"strings"
	"time"
)

// Settings is the complete runtime configuration.
type Settings struct {
	Main         MainSettings         `mapstructure:"main" yaml:"main"`
	Log          LogSettings          `mapstructure:"log" yaml:"log"`
	Database     DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Alerting     AlertingSettings     `mapstructure:"alerting" yaml:"alerting"`
	WebServer    WebServerSettings    `mapstructure:"webserver" yaml:"webserver"`
	MQTT         MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

// MainSettings holds process-wide options.
type MainSettings struct {
	Name     string `mapstructure:"name" yaml:"name"`
	TimeZone string `mapstructure:"timezone" yaml:"timezone"`
	// Language is the BCP 47 tag alert messages are rendered in.
	Language string `mapstructure:"language" yaml:"language"`
}

// Location resolves the configured time zone, falling back to UTC.
func (m MainSettings) Location() *time.Location {
	if m.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LogSettings configures the structured logger.
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// DatabaseSettings selects and configures the store.
type DatabaseSettings struct {
	Type string `mapstructure:"type" yaml:"type"` // "sqlite" or "mysql"
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// AlertingSettings configures the evaluation engine and scheduler.
type AlertingSettings struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Interval     Duration `mapstructure:"interval" yaml:"interval"`
	RunTimeout   Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	Workers      int      `mapstructure:"workers" yaml:"workers"`
	RecentAlerts int      `mapstructure:"recent_alerts" yaml:"recent_alerts"`
	CatalogFile  string   `mapstructure:"catalog_file" yaml:"catalog_file"`
	SeedDefaults bool     `mapstructure:"seed_defaults" yaml:"seed_defaults"`
}

// WebServerSettings configures the operator API.
type WebServerSettings struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	Listen    string  `mapstructure:"listen" yaml:"listen"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // manual runs per second
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// MQTTSettings configures the MQTT alert publisher.
type MQTTSettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
}

// NotificationSettings configures shoutrrr-based notifications.
type NotificationSettings struct {
	URLs        []string `mapstructure:"urls" yaml:"urls"`
	MinSeverity string   `mapstructure:"min_severity" yaml:"min_severity"`
	Language    string   `mapstructure:"language" yaml:"language"`
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (s *Settings) Validate() error {
	var problems []string

	switch s.Database.Type {
	case "sqlite":
		if s.Database.Path == "" {
			problems = append(problems, "database.path is required for sqlite")
		}
	case "mysql":
		if s.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for mysql")
		}
	default:
		problems = append(problems, fmt.Sprintf("database.type %q is not supported", s.Database.Type))
	}

	if s.Alerting.Enabled && s.Alerting.Interval.Std() < time.Minute {
		problems = append(problems, "alerting.interval must be at least 1m")
	}
	if s.Alerting.Workers < 1 {
		problems = append(problems, "alerting.workers must be positive")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		problems = append(problems, "mqtt.broker is required when mqtt is enabled")
	}
	switch s.Notification.MinSeverity {
	case "", "Info", "High", "Critical":
	default:
		problems = append(problems, fmt.Sprintf("notification.min_severity %q is not a severity", s.Notification.MinSeverity))
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		problems = append(problems, "sentry.dsn is required when sentry is enabled")
	}
	if _, err := time.LoadLocation(s.Main.TimeZone); s.Main.TimeZone != "" && err != nil {
		problems = append(problems, fmt.Sprintf("main.timezone: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
