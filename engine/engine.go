package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfmerge/database"
	"github.com/drummonds/pdfmerge/merge"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity
var ErrQueueFull = errors.New("merge queue is full")

type queuedJob struct {
	id     ulid.ULID
	job    merge.Job
	ctx    context.Context
	cancel context.CancelFunc
}

// Runner executes merge jobs one at a time and records their progress in
// the job history. Jobs are cancelled through Cancel.
type Runner struct {
	db     database.Repository
	merger *merge.Merger
	queue  chan queuedJob

	mu      sync.Mutex
	cancels map[ulid.ULID]context.CancelFunc
}

// NewRunner creates a runner with room for queueSize waiting jobs
func NewRunner(db database.Repository, merger *merge.Merger, queueSize int) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		db:      db,
		merger:  merger,
		queue:   make(chan queuedJob, queueSize),
		cancels: make(map[ulid.ULID]context.CancelFunc),
	}
}

// Submit queues job under the already recorded jobID
func (r *Runner) Submit(jobID ulid.ULID, job merge.Job) error {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[jobID] = cancel
	r.mu.Unlock()

	select {
	case r.queue <- queuedJob{id: jobID, job: job, ctx: ctx, cancel: cancel}:
		return nil
	default:
		r.forget(jobID)
		cancel()
		return ErrQueueFull
	}
}

// Cancel asks a pending or running job to stop. It reports false when the
// job is unknown or already finished.
func (r *Runner) Cancel(jobID ulid.ULID) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		Logger.Info("Cancelling merge job", "jobID", jobID)
		cancel()
	}
	return ok
}

// Pending returns the number of queued jobs not yet started
func (r *Runner) Pending() int {
	return len(r.queue)
}

// Run processes queued jobs until ctx is done. Cancelling ctx also cancels
// the job in progress.
func (r *Runner) Run(ctx context.Context) error {
	Logger.Info("Merge worker started")
	for {
		select {
		case <-ctx.Done():
			Logger.Info("Merge worker stopping")
			return nil
		case q := <-r.queue:
			stop := context.AfterFunc(ctx, q.cancel)
			r.runJob(q)
			stop()
		}
	}
}

func (r *Runner) forget(jobID ulid.ULID) {
	r.mu.Lock()
	delete(r.cancels, jobID)
	r.mu.Unlock()
}

// runJob merges one job and stores the outcome
func (r *Runner) runJob(q queuedJob) {
	defer r.forget(q.id)
	defer q.cancel()
	// Writes to the history outlive the job's own context
	ctx := context.WithoutCancel(q.ctx)
	defer func() {
		if rec := recover(); rec != nil {
			Logger.Error("Panic recovered in merge job", "panic", rec, "jobID", q.id)
			if err := r.db.FailJob(ctx, q.id, merge.KindInternal.String(), fmt.Sprintf("panic: %v", rec)); err != nil {
				Logger.Error("Failed to record panic", "jobID", q.id, "error", err)
			}
		}
	}()

	if err := r.db.StartJob(ctx, q.id); err != nil {
		Logger.Error("Failed to mark job running", "jobID", q.id, "error", err)
	}

	sink := &trackingSink{ctx: ctx, db: r.db, jobID: q.id}
	result, err := r.merger.Merge(q.ctx, q.job, sink)
	if err != nil {
		r.recordFailure(ctx, q.id, err)
		return
	}

	if err := r.db.CompleteJob(ctx, q.id, result.Pages, result.Segments); err != nil {
		Logger.Error("Failed to mark job complete", "jobID", q.id, "error", err)
	}
	Logger.Info("Merge job completed", "jobID", q.id, "pages", result.Pages, "segments", result.Segments, "output", result.OutputPath)
}

func (r *Runner) recordFailure(ctx context.Context, jobID ulid.ULID, err error) {
	kind := merge.KindOf(err)
	if kind == merge.KindCancelled {
		Logger.Info("Merge job cancelled", "jobID", jobID)
		if err := r.db.CancelJob(ctx, jobID); err != nil {
			Logger.Error("Failed to mark job cancelled", "jobID", jobID, "error", err)
		}
		return
	}
	Logger.Error("Merge job failed", "jobID", jobID, "kind", kind, "error", err)
	if err := r.db.FailJob(ctx, jobID, kind.String(), err.Error()); err != nil {
		Logger.Error("Failed to record job error", "jobID", jobID, "error", err)
	}
}

// trackingSink stores merge progress as a 0-100 percentage on the job
type trackingSink struct {
	ctx   context.Context
	db    database.Repository
	jobID ulid.ULID
}

func (s *trackingSink) Report(current, total int, message string) {
	percent := 0
	if total > 0 {
		percent = current * 100 / total
	}
	if err := s.db.UpdateJobProgress(s.ctx, s.jobID, percent, message); err != nil {
		Logger.Warn("Failed to update job progress", "jobID", s.jobID, "error", err)
	}
}
