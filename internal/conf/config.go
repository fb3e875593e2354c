package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ALERTENGINE_DATABASE_TYPE.
const EnvPrefix = "ALERTENGINE"

var (
	settingsInstance *Settings
	settingsMu       sync.RWMutex
)

// setDefaults registers every default so environment-only deployments work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "alertengine")
	v.SetDefault("main.timezone", "UTC")
	v.SetDefault("main.language", "es")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "alertengine.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.interval", "1h")
	v.SetDefault("alerting.run_timeout", "15m")
	v.SetDefault("alerting.workers", 4)
	v.SetDefault("alerting.recent_alerts", 20)
	v.SetDefault("alerting.seed_defaults", true)
	v.SetDefault("alerting.catalog_file", "")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.rate_limit", 0.2)
	v.SetDefault("webserver.burst", 2)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "alertengine")
	v.SetDefault("mqtt.topic_prefix", "alertengine")

	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.min_severity", "High")
	v.SetDefault("notification.language", "es")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Load reads configuration from configFile (or the default search paths when
// empty), applies environment overrides and validates the result. The loaded
// settings also become the package-level instance returned by GetSettings.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/alertengine")
		v.AddConfigPath("/etc/alertengine")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	setSettings(settings)
	return settings, nil
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsInstance
}

func setSettings(s *Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settingsInstance = s
}

// Today returns the calendar date of now in loc, at midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
