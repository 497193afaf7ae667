// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver, used in development and tests) and PostgreSQL,
// schema migrations, and driver-independent error classification.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique constraint violation.
var ErrDuplicate = errors.New("duplicate")

// Open connects to the configured driver ("sqlite" or "postgres"), installs
// the OpenTelemetry plugin, and tunes the pool.
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	case "sqlite", "":
		db, err = OpenSQLite(dsn, gcfg)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}
	if gcfg == nil {
		gcfg = &gorm.Config{}
	}

	db, err := gorm.Open(sqlite.Open(withConnPragmas(path)), gcfg)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	return db, nil
}

// withConnPragmas adds per-connection pragmas to the DSN so every pooled
// connection enforces foreign keys, not only the first one.
func withConnPragmas(dsn string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn + "?" + pragmas
	}
	return "file:" + dsn + "?" + pragmas
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.AnimalType{},
		&domain.Shelter{},
		&domain.Subscription{},
		&domain.Pet{},
		&domain.Task{},
		&domain.Vacancy{},
		&domain.Image{},
		&domain.News{},
		&domain.HelpArticle{},
		&domain.FAQ{},
		&domain.Chat{},
		&domain.Message{},
		&domain.Donation{},
		&domain.YookassaOAuthToken{},
		&domain.WebhookEvent{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// IsDuplicate reports whether err is a unique-constraint violation on either
// PostgreSQL (SQLSTATE 23505) or SQLite.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// DuplicateColumn extracts the offending column name from a unique violation
// when the driver reports it ("UNIQUE constraint failed: shelters.tin" or a
// PostgreSQL index like "idx_shelters_tin"). It returns "" if unknown.
func DuplicateColumn(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimPrefix(pgErr.ConstraintName, "idx_"+pgErr.TableName+"_")
	}
	msg := err.Error()
	if i := strings.Index(strings.ToLower(msg), "unique constraint failed:"); i >= 0 {
		rest := strings.TrimSpace(msg[i+len("unique constraint failed:"):])
		if j := strings.IndexAny(rest, " ,("); j >= 0 {
			rest = rest[:j]
		}
		if k := strings.LastIndex(rest, "."); k >= 0 {
			return rest[k+1:]
		}
		return rest
	}
	return ""
}
