package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/matrixtui/internal/store/migrations"
)

// SchemaVersion is the archive schema this build writes: 1 creates the rooms
// and messages tables, 2 adds sync_state.
const SchemaVersion uint = 2

// ErrDirtySchema means an earlier migration stopped halfway. The archive is
// a cache, so the usual fix is deleting archive.db.
var ErrDirtySchema = errors.New("archive schema is dirty")

// MigrateResult reports the archive schema before and after Migrate.
type MigrateResult struct {
	From    uint
	Version uint
	Changed bool
}

// Migrate brings the archive up to SchemaVersion. Newer schemas written by a
// later build are left alone.
func (db *DB) Migrate() (*MigrateResult, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("archive schema source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive schema driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return nil, fmt.Errorf("archive schema version: %w", err)
	case dirty:
		return nil, fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}
	if from >= SchemaVersion {
		return &MigrateResult{From: from, Version: from}, nil
	}

	if err := m.Migrate(SchemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("archive schema %d -> %d: %w", from, SchemaVersion, err)
	}
	return &MigrateResult{From: from, Version: SchemaVersion, Changed: true}, nil
}
