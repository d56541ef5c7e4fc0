package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	config "github.com/drummonds/pdfmerge/config"
	database "github.com/drummonds/pdfmerge/database"
	"github.com/drummonds/pdfmerge/document"
	"github.com/drummonds/pdfmerge/document/pdfinfo"
	engine "github.com/drummonds/pdfmerge/engine"
	"github.com/drummonds/pdfmerge/merge"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	merge.Logger = Logger
	document.Logger = Logger
}

// @title pdfmerge API
// @version 1.0
// @description Merges JPEG/PNG images and PDF documents into a single PDF.
// @description Merges run as queued jobs whose progress is recorded in the job history.

// @BasePath /api
// @schemes http https

// @tag.name Merge
// @tag.description Queue merges and inspect input files

// @tag.name Jobs
// @tag.description Merge job history and cancellation

// @tag.name Admin
// @tag.description Health and configuration

const queueSize = 64

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Job history will be destroyed on exit")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, serverConfig); err != nil {
		Logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves the API and the merge worker until ctx is cancelled
func run(ctx context.Context, serverConfig config.ServerConfig) error {
	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		return fmt.Errorf("database setup: %w", err)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	e, serverHandler, err := newServer(serverConfig, db)
	if err != nil {
		return err
	}
	defer serverHandler.Inspector.Close()

	if err := serverHandler.StartupChecks(); err != nil { //Run all the sanity checks
		return fmt.Errorf("startup checks: %w", err)
	}
	scheduler, err := serverHandler.InitializeSchedules()
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	listener, err := listen(serverConfig)
	if err != nil {
		return err
	}
	e.Listener = listener

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serverHandler.Runner.Run(gctx)
	})
	g.Go(func() error {
		Logger.Info("Starting HTTP server", "address", listener.Addr().String())
		if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		Logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newServer wires the echo instance, merge worker and routes
func newServer(serverConfig config.ServerConfig, db database.Repository) (*echo.Echo, *engine.ServerHandler, error) {
	inspector, err := pdfinfo.New(serverConfig.PDFInspector)
	if err != nil {
		return nil, nil, fmt.Errorf("pdf inspector: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	merger := merge.New(merge.WithInspector(inspector))
	serverHandler := &engine.ServerHandler{
		DB:           db, //injecting the database into the handler for routes
		Echo:         e,
		ServerConfig: serverConfig,
		Runner:       engine.NewRunner(db, merger, queueSize),
		Merger:       merger,
		Inspector:    inspector,
	}
	serverHandler.RegisterRoutes()
	return e, serverHandler, nil
}

// listen binds the configured port, trying the next few ports if it is taken
func listen(serverConfig config.ServerConfig) (net.Listener, error) {
	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	const maxRetries = 5
	startPort := serverConfig.ListenAddrPort
	port := startPort
	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := net.JoinHostPort(serverConfig.ListenAddrIP, port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			if port != startPort {
				Logger.Warn("Server started on alternative port due to conflicts",
					"requested_port", startPort,
					"actual_port", port)
			}
			return listener, nil
		}
		if !isAddressInUse(err) {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		Logger.Warn("Port already in use, trying next port", "port", port, "attempt", attempt+1, "max_attempts", maxRetries)

		portNum := 0
		fmt.Sscanf(port, "%d", &portNum)
		port = fmt.Sprintf("%d", portNum+1)
	}
	return nil, fmt.Errorf("no free port found after %d attempts starting at %s", maxRetries, startPort)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
