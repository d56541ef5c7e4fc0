package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/drummonds/pdfmerge/config"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := outputDirectoryChecks(serverHandler.ServerConfig); err != nil {
		return err
	}

	// Nothing survives a restart, so anything still queued or running is lost
	count, err := serverHandler.DB.FailInterruptedJobs(context.Background(), "interrupted by server restart")
	if err != nil {
		Logger.Error("Failed to fail interrupted jobs", "error", err)
		return err
	}
	if count > 0 {
		Logger.Warn("Marked interrupted jobs as failed", "count", count)
	}
	return nil
}

// outputDirectoryChecks creates the output directory when it is missing
// and fails when the path is taken by something else
func outputDirectoryChecks(serverConfig config.ServerConfig) error {
	dir := serverConfig.OutputPath
	if dir == "" {
		Logger.Warn("Output path not configured, relative outputs resolve against the working directory")
		return nil
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		Logger.Info("Creating output directory", "path", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("check output directory %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("output path is not a directory: %s", dir)
	}
	return nil
}
