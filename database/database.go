package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfmerge/config"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ErrJobNotFound is returned when no job has the requested ID
var ErrJobNotFound = errors.New("job not found")

// Repository is the merge job history
type Repository interface {
	Close() error
	CreateJob(ctx context.Context, req JobRequest) (*Job, error)
	StartJob(ctx context.Context, id ulid.ULID) error
	UpdateJobProgress(ctx context.Context, id ulid.ULID, progress int, step string) error
	CompleteJob(ctx context.Context, id ulid.ULID, pages, segments int) error
	FailJob(ctx context.Context, id ulid.ULID, kind, message string) error
	CancelJob(ctx context.Context, id ulid.ULID) error
	GetJob(ctx context.Context, id ulid.ULID) (*Job, error)
	ListJobs(ctx context.Context, opts ListOptions) ([]Job, error)
	// PruneJobs deletes finished jobs that finished before cutoff.
	PruneJobs(ctx context.Context, cutoff time.Time) (int, error)
	// FailInterruptedJobs marks jobs left pending or running by a previous
	// process as failed and returns how many were changed.
	FailInterruptedJobs(ctx context.Context, reason string) (int, error)
}

// NewRepository opens the job store selected by DatabaseType: sqlite,
// postgres and cockroachdb go through bun, ephemeral starts a throwaway
// PostgreSQL server and uses lib/pq.
func NewRepository(cfg config.ServerConfig) (Repository, error) {
	switch cfg.DatabaseType {
	case "ephemeral":
		Logger.Info("Starting ephemeral PostgreSQL database for development")
		return SetupEphemeralPostgresDatabase()
	case "postgres", "cockroachdb", "sqlite":
		return NewBunDB(cfg)
	default:
		Logger.Info("Supported database types: ephemeral, postgres, cockroachdb, sqlite")
		return nil, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}
}

// CalculateUUID generates a time ordered job ID
func CalculateUUID(t time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.New(ulid.Timestamp(t), entropy)
}

func newJob(req JobRequest) (*Job, error) {
	now := time.Now().UTC()
	id, err := CalculateUUID(now)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        id,
		Status:    JobStatusPending,
		Inputs:    req.Inputs,
		Output:    req.Output,
		Layout:    req.Layout,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func statusStrings(statuses []JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
