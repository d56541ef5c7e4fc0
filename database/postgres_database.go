package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresDB is the job history on database/sql with lib/pq, migrated by
// golang-migrate from the embedded migrations directory
type PostgresDB struct {
	db *sql.DB
}

// SetupPostgresDatabase connects to an external PostgreSQL or CockroachDB
// server and brings its schema up to date
func SetupPostgresDatabase(connectionString string) (*PostgresDB, error) {
	db, err := openPostgres(connectionString)
	if err != nil {
		return nil, err
	}
	return &PostgresDB{db: db}, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func runPostgresMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	// A crash mid-migration leaves the version dirty; the DDL is idempotent
	// so it is safe to force and rerun it
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		Logger.Warn("Schema version is dirty, forcing", "version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("force schema version %d: %w", version, err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ = m.Version()
	Logger.Info("Job database schema is current", "version", version)
	return nil
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// CreateJob records a pending merge
func (p *PostgresDB) CreateJob(ctx context.Context, req JobRequest) (*Job, error) {
	job, err := newJob(req)
	if err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO merge_jobs (id, status, inputs, output, layout, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		job.ID.String(), job.Status, job.Inputs, job.Output, job.Layout, job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// StartJob marks a pending job as running
func (p *PostgresDB) StartJob(ctx context.Context, id ulid.ULID) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE merge_jobs SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4`,
		JobStatusRunning, time.Now().UTC(), id.String(), JobStatusPending,
	)
	return err
}

// UpdateJobProgress stores the percentage done and the latest step
func (p *PostgresDB) UpdateJobProgress(ctx context.Context, id ulid.ULID, progress int, step string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE merge_jobs SET progress = $1, step = $2, updated_at = $3 WHERE id = $4`,
		progress, step, time.Now().UTC(), id.String(),
	)
	return err
}

// finishJob moves an active job into a terminal status. set holds extra
// assignments whose placeholders start at $5.
func (p *PostgresDB) finishJob(ctx context.Context, id ulid.ULID, status JobStatus, set string, args ...any) error {
	query := `UPDATE merge_jobs SET status = $1, updated_at = $2, finished_at = $2` + set +
		` WHERE id = $3 AND status = ANY($4)`
	args = append([]any{status, time.Now().UTC(), id.String(), pq.Array(statusStrings(activeStatuses))}, args...)
	_, err := p.db.ExecContext(ctx, query, args...)
	return err
}

// CompleteJob records a successful merge
func (p *PostgresDB) CompleteJob(ctx context.Context, id ulid.ULID, pages, segments int) error {
	return p.finishJob(ctx, id, JobStatusCompleted, `, progress = 100, pages = $5, segments = $6`, pages, segments)
}

// FailJob records a failed merge and its error kind
func (p *PostgresDB) FailJob(ctx context.Context, id ulid.ULID, kind, message string) error {
	return p.finishJob(ctx, id, JobStatusFailed, `, error_kind = $5, error = $6`, kind, message)
}

// CancelJob records a merge stopped on request
func (p *PostgresDB) CancelJob(ctx context.Context, id ulid.ULID) error {
	return p.finishJob(ctx, id, JobStatusCancelled, "")
}

const jobColumns = `id, status, progress, step, inputs, output, layout, pages, segments,
	COALESCE(error_kind, ''), COALESCE(error, ''), created_at, updated_at, started_at, finished_at`

// GetJob retrieves a job by ID
func (p *PostgresDB) GetJob(ctx context.Context, id ulid.ULID) (*Job, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM merge_jobs WHERE id = $1`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs newest first
func (p *PostgresDB) ListJobs(ctx context.Context, opts ListOptions) ([]Job, error) {
	var (
		where []string
		args  []any
	)
	if len(opts.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(opts.Statuses)))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	query := `SELECT ` + jobColumns + ` FROM merge_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// PruneJobs deletes finished jobs that finished before cutoff
func (p *PostgresDB) PruneJobs(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM merge_jobs WHERE status = ANY($1) AND finished_at < $2`,
		pq.Array(statusStrings(finishedStatuses)), cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	count, err := result.RowsAffected()
	return int(count), err
}

// FailInterruptedJobs fails every job still pending or running
func (p *PostgresDB) FailInterruptedJobs(ctx context.Context, reason string) (int, error) {
	result, err := p.db.ExecContext(ctx, `
		UPDATE merge_jobs SET status = $1, error_kind = 'Interrupted', error = $2, updated_at = $3, finished_at = $3
		WHERE status = ANY($4)`,
		JobStatusFailed, reason, time.Now().UTC(), pq.Array(statusStrings(activeStatuses)),
	)
	if err != nil {
		return 0, err
	}
	count, err := result.RowsAffected()
	return int(count), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job               Job
		id                string
		started, finished sql.NullTime
	)
	err := row.Scan(&id, &job.Status, &job.Progress, &job.Step, &job.Inputs, &job.Output, &job.Layout,
		&job.Pages, &job.Segments, &job.ErrorKind, &job.Error, &job.CreatedAt, &job.UpdatedAt,
		&started, &finished)
	if err != nil {
		return Job{}, err
	}
	if job.ID, err = ulid.Parse(id); err != nil {
		return Job{}, fmt.Errorf("job id %q: %w", id, err)
	}
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	return job, nil
}
