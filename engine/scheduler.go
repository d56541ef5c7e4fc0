package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// InitializeSchedules starts the job history pruning cron. The caller stops
// the returned scheduler on shutdown.
func (serverHandler *ServerHandler) InitializeSchedules() (*cron.Cron, error) {
	cfg := serverHandler.ServerConfig
	interval := cfg.JobPruneInterval
	if interval < 1 {
		interval = 60
	}

	c := cron.New()
	var pruneJob cron.Job
	pruneJob = cron.FuncJob(serverHandler.pruneJobs)
	pruneJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(pruneJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), pruneJob); err != nil {
		return nil, fmt.Errorf("failed to schedule job pruning: %w", err)
	}
	Logger.Info("Adding job pruning scheduler", "interval_minutes", interval, "retention_hours", cfg.JobRetentionHours)
	c.Start()
	return c, nil
}

// pruneJobs deletes finished jobs older than the retention period
func (serverHandler *ServerHandler) pruneJobs() {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in prune job", "panic", r)
		}
	}()

	retention := time.Duration(serverHandler.ServerConfig.JobRetentionHours) * time.Hour
	deleted, err := serverHandler.DB.PruneJobs(context.Background(), time.Now().Add(-retention))
	if err != nil {
		Logger.Error("Failed to prune old jobs", "error", err)
		return
	}
	if deleted > 0 {
		Logger.Info("Pruned old jobs", "count", deleted, "retention", retention)
	}
}
