// Package schema bootstraps the migration subsystem's own tables (source
// activities, derived results, ledgers, configurations) through
// golang-migrate with migrations embedded in the binary.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// migrationsTable names the version-tracking table so it cannot collide
// with application tables.
const migrationsTable = "acwr_schema_migrations"

//go:embed migrations
var rawMigrationFS embed.FS

// MigrationFS returns the embedded SQL migrations.
func MigrationFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "migrations")
	if err != nil {
		// The migrations directory is embedded at build time.
		logger.Fatalf("Failed to open embedded migration FS: %v", err)
	}
	return subFS
}

// Migrator applies the embedded schema migrations to one connection.
type Migrator struct {
	sqlDB  *sql.DB
	dbType string
}

// NewMigrator creates a Migrator for an open connection of the given type
// ("sqlite", "mysql" or "postgres").
func NewMigrator(sqlDB *sql.DB, dbType string) *Migrator {
	return &Migrator{sqlDB: sqlDB, dbType: dbType}
}

// databaseDriver builds the migrate/v4 driver for the connection's type.
func (m *Migrator) databaseDriver() (database.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(m.sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(m.sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(m.sqlDB, &sqlite3.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for schema migration: %s", m.dbType)
	}
}

func (m *Migrator) instance() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(MigrationFS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver: %w", err)
	}
	dbDriver, err := m.databaseDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	inst, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return inst, nil
}

// Up applies all pending migrations. An already-current schema is not an
// error.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Infof("Applying schema migrations (%s).", m.dbType)
	inst, err := m.instance()
	if err != nil {
		return err
	}
	defer inst.Close()

	if err := inst.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Schema already up to date.")
			return nil
		}
		return fmt.Errorf("schema migration failed: %w", err)
	}
	logger.Infof("Schema migrations applied.")
	return nil
}

// Down rolls the schema back one step. Used by operational tooling only.
func (m *Migrator) Down(ctx context.Context) error {
	inst, err := m.instance()
	if err != nil {
		return err
	}
	defer inst.Close()

	if err := inst.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("schema rollback failed: %w", err)
	}
	return nil
}
