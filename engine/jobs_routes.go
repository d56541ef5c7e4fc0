package engine

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfmerge/database"
)

const (
	defaultJobLimit = 20
	maxJobLimit     = 100
)

// lookupJob loads the job named by the :id path parameter. On failure it
// has already written the error response and the returned job is nil.
func (serverHandler *ServerHandler) lookupJob(c echo.Context) (*database.Job, error) {
	jobID, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(c.Request().Context(), jobID)
	switch {
	case errors.Is(err, database.ErrJobNotFound):
		return nil, c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	case err != nil:
		Logger.Error("Failed to get job", "jobID", jobID, "error", err)
		return nil, c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve job",
		})
	}
	return job, nil
}

// GetJob reports the state of one merge
// @Summary Get job by ID
// @Description Status, progress, page count and error of a merge job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} database.Job "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	job, err := serverHandler.lookupJob(c)
	if job == nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// CancelJob stops a pending or running merge
// @Summary Cancel a job
// @Description Ask a pending or running merge to stop at the next segment boundary
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 202 {object} map[string]interface{} "Cancellation requested"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Failure 409 {object} map[string]interface{} "Job already finished"
// @Router /jobs/{id} [delete]
func (serverHandler *ServerHandler) CancelJob(c echo.Context) error {
	job, err := serverHandler.lookupJob(c)
	if job == nil {
		return err
	}

	if job.Status.IsTerminal() || !serverHandler.Runner.Cancel(job.ID) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "Job is not running",
			"status": job.Status,
		})
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID.String(),
		"status": "cancelling",
	})
}

// ListJobs pages through the job history
// @Summary List jobs
// @Description Jobs newest first, optionally filtered by a comma separated list of statuses
// @Tags Jobs
// @Produce json
// @Param status query string false "Statuses to include, e.g. failed,cancelled"
// @Param limit query int false "Number of jobs to return (default: 20, max: 100)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} database.Job "List of jobs"
// @Failure 400 {object} map[string]interface{} "Unknown status"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) ListJobs(c echo.Context) error {
	opts := database.ListOptions{Limit: defaultJobLimit}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		opts.Limit = min(l, maxJobLimit)
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o > 0 {
		opts.Offset = o
	}
	if filter := c.QueryParam("status"); filter != "" {
		for _, name := range strings.Split(filter, ",") {
			status := database.JobStatus(strings.TrimSpace(strings.ToLower(name)))
			if !knownStatus(status) {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": "Unknown job status " + strconv.Quote(name),
				})
			}
			opts.Statuses = append(opts.Statuses, status)
		}
	}
	return serverHandler.listJobs(c, opts)
}

// ListActiveJobs lists merges that are queued or running
// @Summary Get active jobs
// @Description All jobs that are currently pending or running
// @Tags Jobs
// @Produce json
// @Success 200 {array} database.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) ListActiveJobs(c echo.Context) error {
	return serverHandler.listJobs(c, database.ActiveJobs())
}

func (serverHandler *ServerHandler) listJobs(c echo.Context, opts database.ListOptions) error {
	jobs, err := serverHandler.DB.ListJobs(c.Request().Context(), opts)
	if err != nil {
		Logger.Error("Failed to list jobs", "statuses", opts.Statuses, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve jobs",
		})
	}
	if jobs == nil {
		jobs = []database.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

func knownStatus(s database.JobStatus) bool {
	switch s {
	case database.JobStatusPending, database.JobStatusRunning, database.JobStatusCompleted,
		database.JobStatusFailed, database.JobStatusCancelled:
		return true
	}
	return false
}
