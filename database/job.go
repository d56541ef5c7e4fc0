package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus is where a merge job is in its lifecycle
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

var (
	activeStatuses   = []JobStatus{JobStatusPending, JobStatusRunning}
	finishedStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
)

// IsTerminal reports whether no further transitions can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one queued, running or finished merge
type Job struct {
	ID         ulid.ULID  `json:"id"`
	Status     JobStatus  `json:"status"`
	Progress   int        `json:"progress"` // 0-100
	Step       string     `json:"step"`     // latest progress message
	Inputs     int        `json:"inputs"`
	Output     string     `json:"output"`
	Layout     string     `json:"layout"`
	Pages      int        `json:"pages,omitempty"`
	Segments   int        `json:"segments,omitempty"`
	ErrorKind  string     `json:"errorKind,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// JobRequest is what is known about a merge before it is queued
type JobRequest struct {
	Inputs int
	Output string
	Layout string
}

// ListOptions filters ListJobs. An empty Statuses matches every job and a
// zero Limit returns all rows.
type ListOptions struct {
	Statuses []JobStatus
	Limit    int
	Offset   int
}

// ActiveJobs selects pending and running jobs
func ActiveJobs() ListOptions {
	return ListOptions{Statuses: activeStatuses}
}
