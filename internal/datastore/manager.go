// Package datastore opens the GORM connection backing rules, configuration,
// alerts and the operational read models.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// Config selects the database backend.
type Config struct {
	Type string
	// Path is the SQLite database file. ":memory:" opens a private in-memory DB.
	Path string
	// DSN is the MySQL data source name.
	DSN string
	// Debug enables GORM SQL logging.
	Debug bool
}

// Manager owns the database connection.
type Manager struct {
	db  *gorm.DB
	cfg Config
}

// NewManager opens the configured database. Call Initialize before use.
func NewManager(cfg Config) (*Manager, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := gorm_logger.Silent
	if cfg.Debug {
		logLevel = gorm_logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gorm_logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Type == TypeSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent alert inserts.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Manager{db: db, cfg: cfg}, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		path := cfg.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		if path == ":memory:" {
			return sqlite.Open("file::memory:?_foreign_keys=ON"), nil
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(path + "?_foreign_keys=ON&_busy_timeout=5000&_journal_mode=WAL"), nil
	case TypeMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql dsn is required")
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// Models lists every entity managed by the schema, in dependency order.
func Models() []any {
	return []any{
		&entities.Rule{},
		&entities.RuleParameter{},
		&entities.ConfigEntry{},
		&entities.ConfigOverride{},
		&entities.Program{},
		&entities.Activity{},
		&entities.Participant{},
		&entities.Enrollment{},
		&entities.AttendanceRecord{},
		&entities.PlanMetric{},
		&entities.FieldValue{},
		&entities.Alert{},
	}
}

// Initialize migrates the schema.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB returns the GORM handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// IsMySQL reports whether the manager is backed by MySQL.
func (m *Manager) IsMySQL() bool {
	return m.cfg.Type == TypeMySQL
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
