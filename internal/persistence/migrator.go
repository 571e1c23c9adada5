package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Migrator applies the ledger's SQL migrations: the command_log schema
// (commands, entries, snapshots) and the projections schema. Files follow
// {version}_{name}.up.sql / .down.sql; applied versions are recorded in
// command_log.schema_migrations so the version history lives next to the data
// it shaped.
type Migrator struct {
	db  *sql.DB
	dir string
	log zerolog.Logger
}

// migration is one discovered up/down pair, identified by its numeric version
// prefix.
type migration struct {
	version string
	name    string
	upFile  string
}

func NewMigrator(db *sql.DB, dir string, log zerolog.Logger) *Migrator {
	return &Migrator{
		db:  db,
		dir: dir,
		log: log.With().Str("component", "migrator").Logger(),
	}
}

// Up applies every pending migration in version order, one transaction per
// file. Safe to run on every startup.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("load applied versions: %w", err)
	}

	migrations, err := m.discover()
	if err != nil {
		return fmt.Errorf("discover migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
		m.log.Info().
			Str("version", mig.version).
			Str("migration", mig.name).
			Msg("migration applied")
	}

	return nil
}

// Down rolls back the most recently applied migration using its .down.sql
// counterpart. Rolling back 000001 drops the command log itself; there is no
// guard against that beyond the operator invoking this deliberately.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}

	var version, upFile string
	err := m.db.QueryRowContext(ctx, `
		SELECT version, filename
		FROM command_log.schema_migrations
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&version, &upFile)
	if err == sql.ErrNoRows {
		m.log.Info().Msg("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load latest version: %w", err)
	}

	downFile := strings.Replace(upFile, ".up.sql", ".down.sql", 1)
	sqlText, err := os.ReadFile(filepath.Join(m.dir, downFile))
	if err != nil {
		return fmt.Errorf("read %s: %w", downFile, err)
	}

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		// Delete the record first: the down migration for 000001 drops the
		// version table itself, and a post-drop delete would abort the tx.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM command_log.schema_migrations WHERE version = $1
		`, version); err != nil {
			return fmt.Errorf("delete version record %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
			return fmt.Errorf("exec %s: %w", downFile, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info().Str("version", version).Msg("migration rolled back")
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	sqlText, err := os.ReadFile(filepath.Join(m.dir, mig.upFile))
	if err != nil {
		return fmt.Errorf("read %s: %w", mig.upFile, err)
	}

	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
			return fmt.Errorf("exec %s: %w", mig.upFile, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO command_log.schema_migrations (version, filename)
			VALUES ($1, $2)
		`, mig.version, mig.upFile); err != nil {
			return fmt.Errorf("record %s: %w", mig.version, err)
		}
		return nil
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ensureVersionTable bootstraps the command_log schema far enough to hold the
// version table; migration 000001 fills in the rest.
func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS command_log;
		CREATE TABLE IF NOT EXISTS command_log.schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM command_log.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// discover lists the up-migrations in the migrations directory, sorted by
// version prefix, e.g. "000002_projections.up.sql" has version "000002" and
// name "projections".
func (m *Migrator) discover() ([]migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		version, rest, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %q has no version prefix", e.Name())
		}
		migrations = append(migrations, migration{
			version: version,
			name:    strings.TrimSuffix(rest, ".up.sql"),
			upFile:  e.Name(),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
