package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"

	"github.com/leebs0521/wayline-core/internal/types"
)

//go:embed schema.sql
var initialSchema string

// migration is a single versioned schema change.
type migration struct {
	version int
	name    string
	up      string
}

// Migrator applies pending schema migrations in version order.
type Migrator struct {
	db         *DB
	migrations []migration
}

// NewMigrator creates a migrator over the database.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: allMigrations(),
	}
}

func allMigrations() []migration {
	migrations := []migration{
		{version: 1, name: "initial_schema", up: initialSchema},
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.version <= current {
			continue
		}
		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.up); err != nil {
				return types.WrapError(types.DB_MIGRATION_FAILED,
					fmt.Sprintf("applying migration %d (%s)", mig.version, mig.name), err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				mig.version, mig.name)
			if err != nil {
				return types.WrapError(types.DB_MIGRATION_FAILED,
					fmt.Sprintf("recording migration %d", mig.version), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CurrentVersion returns the highest applied migration version, 0 if
// none.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := m.db.conn.QueryRowContext(ctx,
		"SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, types.WrapError(types.DB_MIGRATION_FAILED, "reading schema version", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return types.WrapError(types.DB_MIGRATION_FAILED, "creating migrations table", err)
	}
	return nil
}
