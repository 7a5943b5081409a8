package db

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers postgres:// for migrate
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // database/sql driver used by migrate's postgres driver
	"github.com/sirupsen/logrus"

	"github.com/user/accountd/apperror"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m   *migrate.Migrate
	log logrus.FieldLogger
}

// NewMigrator prepares a migrator for the database at dsn.
func NewMigrator(dsn string, log logrus.FieldLogger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, apperror.NewMigrationError("failed to open embedded migrations", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, apperror.NewMigrationError("failed to create migrator", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to run migrations", err)
	}
	return mg.logVersion()
}

// Down rolls back the given number of migrations.
func (mg *Migrator) Down(steps int) error {
	if steps < 1 {
		return apperror.NewBadRequestError("steps must be at least 1", nil)
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to roll back migrations", err)
	}
	return mg.logVersion()
}

// Version reports the current schema version. A database without any
// applied migration reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperror.NewMigrationError("failed to read schema version", err)
	}
	return v, dirty, nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		mg.log.WithError(srcErr).Warn("error closing migration source")
	}
	if dbErr != nil {
		mg.log.WithError(dbErr).Warn("error closing migration database instance")
	}
}

func (mg *Migrator) logVersion() error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("database schema is current")
	return nil
}
