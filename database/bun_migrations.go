package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type bunMigration struct {
	version string
	name    string
	stmts   []string
}

// appliedMigration records a migration in schema_versions
type appliedMigration struct {
	bun.BaseModel `bun:"table:schema_versions"`

	Version string `bun:"version,pk"`
	Name    string `bun:"name"`
}

// bunMigrations mirror migrations/*.up.sql. The DDL runs unchanged on
// sqlite, postgres and cockroachdb.
var bunMigrations = []bunMigration{
	{"001", "create_merge_jobs", []string{`
		CREATE TABLE IF NOT EXISTS merge_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending',
			progress INTEGER NOT NULL DEFAULT 0,
			step TEXT NOT NULL DEFAULT '',
			inputs INTEGER NOT NULL DEFAULT 0,
			output TEXT NOT NULL DEFAULT '',
			layout TEXT NOT NULL DEFAULT '',
			pages INTEGER NOT NULL DEFAULT 0,
			segments INTEGER NOT NULL DEFAULT 0,
			error_kind TEXT,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,
	}},
	{"002", "index_merge_jobs", []string{
		"CREATE INDEX IF NOT EXISTS idx_merge_jobs_status ON merge_jobs(status)",
		"CREATE INDEX IF NOT EXISTS idx_merge_jobs_created_at ON merge_jobs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_merge_jobs_finished_at ON merge_jobs(finished_at) WHERE finished_at IS NOT NULL",
	}},
}

// runMigrations applies every migration not yet recorded in schema_versions
func (b *BunDB) runMigrations(ctx context.Context) error {
	if _, err := b.db.NewCreateTable().Model((*appliedMigration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create schema_versions: %w", err)
	}

	var applied []appliedMigration
	if err := b.db.NewSelect().Model(&applied).Scan(ctx); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	for _, m := range bunMigrations {
		if done[m.version] {
			continue
		}
		Logger.Info("Running migration", "version", m.version, "name", m.name)
		err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.NewInsert().Model(&appliedMigration{Version: m.version, Name: m.name}).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}
