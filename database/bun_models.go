package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// jobRow is the merge_jobs table as bun sees it
type jobRow struct {
	bun.BaseModel `bun:"table:merge_jobs,alias:mj"`

	ID         string     `bun:"id,pk"`
	Status     string     `bun:"status,notnull"`
	Progress   int        `bun:"progress,notnull"`
	Step       string     `bun:"step,notnull"`
	Inputs     int        `bun:"inputs,notnull"`
	Output     string     `bun:"output,notnull"`
	Layout     string     `bun:"layout,notnull"`
	Pages      int        `bun:"pages,notnull"`
	Segments   int        `bun:"segments,notnull"`
	ErrorKind  string     `bun:"error_kind,nullzero"`
	Error      string     `bun:"error,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
	StartedAt  *time.Time `bun:"started_at"`
	FinishedAt *time.Time `bun:"finished_at"`
}

func rowFromJob(j *Job) *jobRow {
	return &jobRow{
		ID:         j.ID.String(),
		Status:     string(j.Status),
		Progress:   j.Progress,
		Step:       j.Step,
		Inputs:     j.Inputs,
		Output:     j.Output,
		Layout:     j.Layout,
		Pages:      j.Pages,
		Segments:   j.Segments,
		ErrorKind:  j.ErrorKind,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func (r *jobRow) job() (Job, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:         id,
		Status:     JobStatus(r.Status),
		Progress:   r.Progress,
		Step:       r.Step,
		Inputs:     r.Inputs,
		Output:     r.Output,
		Layout:     r.Layout,
		Pages:      r.Pages,
		Segments:   r.Segments,
		ErrorKind:  r.ErrorKind,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}, nil
}
