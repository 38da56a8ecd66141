// Package database opens the storage handle and keeps the schema current.
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
)

var (
	ErrMissingDSN        = errors.New("database dsn is required")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Config selects the storage backend.
type Config struct {
	Driver string
	DSN    string
}

// Open establishes a connection for the configured driver and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrMissingDSN
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true, Logger: newGormLogger(logger)})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite || cfg.Driver == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driverName(cfg.Driver)))
	return db, nil
}

// Migrate creates or updates every table, then applies pending one-shot migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&users.User{}, &moves.Move{}, &routines.Routine{}, &routines.Entry{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch driverName(cfg.Driver) {
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(cfg.DSN)), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func driverName(driver string) string {
	if driver == "" {
		return DriverSQLite
	}
	return driver
}

// sqliteDSN enables foreign key enforcement, which SQLite leaves off per connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + sqliteForeignKeysPragma
}
