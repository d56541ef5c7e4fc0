package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/drummonds/pdfmerge/layout"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP      string
	ListenAddrPort    string
	DatabaseType      string
	DatabaseHost      string
	DatabasePort      string
	DatabaseUser      string
	DatabasePassword  string `json:"-"`
	DatabaseDbname    string
	DatabaseSslmode   string
	OutputPath        string // absolute directory for outputs given as relative paths
	JobRetentionHours int
	JobPruneInterval  int // minutes
	PDFInspector      string
	Merge             layout.Config // default layout for requests that omit one
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAs parses an environment variable, falling back to defaultValue
// when it is unset or malformed
func getEnvAs[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := parse(value)
	if err != nil {
		if Logger != nil {
			Logger.Warn("Ignoring malformed setting", "key", key, "value", value, "error", err)
		}
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	return getEnvAs(key, defaultValue, strconv.ParseBool)
}

func getEnvInt(key string, defaultValue int) int {
	return getEnvAs(key, defaultValue, strconv.Atoi)
}

func getEnvFloat(key string, defaultValue float64) float64 {
	return getEnvAs(key, defaultValue, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

// LoadEnvFiles loads .env and config.env from the working directory if they exist
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	LoadEnvFiles()

	logger := setupLogging()
	Logger = logger

	serverConfigLive := ServerConfig{}

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "pdfmerge")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "pdfmerge")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	outputDir := filepath.ToSlash(getEnv("OUTPUT_PATH", "output"))
	outputDirAbs, err := filepath.Abs(outputDir)
	if err != nil {
		logger.Error("Failed creating absolute path for output directory", "error", err)
		outputDirAbs = outputDir
	}
	serverConfigLive.OutputPath = outputDirAbs

	serverConfigLive.JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 72)
	serverConfigLive.JobPruneInterval = getEnvInt("JOB_PRUNE_INTERVAL", 60)
	serverConfigLive.PDFInspector = getEnv("PDF_INSPECTOR", "ledongthuc")

	mergeDefaults, err := MergeDefaults()
	if err != nil {
		logger.Warn("Invalid merge defaults, using one image per page", "error", err)
		mergeDefaults = layout.DefaultConfig()
	}
	serverConfigLive.Merge = mergeDefaults

	fmt.Println("\n========================================")
	fmt.Println("   pdfmerge - Image and PDF merge server")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Outputs written to: %s\n", serverConfigLive.OutputPath)
	if getEnv("LOG_OUTPUT", "file") != "stdout" {
		fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdfmerge.log"))
	}

	logger.Info("Server configuration loaded",
		"outputPath", serverConfigLive.OutputPath,
		"retentionHours", serverConfigLive.JobRetentionHours,
		"pruneIntervalMinutes", serverConfigLive.JobPruneInterval,
		"inspector", serverConfigLive.PDFInspector)

	return serverConfigLive, logger
}

// MergeDefaults reads the default merge layout from MERGE_PAGE_SIZE,
// MERGE_GRID, MERGE_MARGIN_MM and MERGE_SPACING_MM.
func MergeDefaults() (layout.Config, error) {
	cfg := layout.DefaultConfig()

	pageSize, err := layout.ParsePageSize(getEnv("MERGE_PAGE_SIZE", ""))
	if err != nil {
		return cfg, err
	}
	cfg.PageSize = pageSize

	if grid := getEnv("MERGE_GRID", ""); grid != "" {
		rows, cols, err := layout.ParseGrid(grid)
		if err != nil {
			return cfg, err
		}
		cfg.Rows, cfg.Cols = rows, cols
	}

	cfg.MarginMM = getEnvFloat("MERGE_MARGIN_MM", 0)
	cfg.SpacingMM = getEnvFloat("MERGE_SPACING_MM", 0)
	return cfg, cfg.Validate()
}

// parseLevel maps a LOG_LEVEL value onto a slog level, defaulting to debug
func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// NewLogger creates a text logger writing to w at the named level
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfmerge.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	return NewLogger(logWriter, logLevel)
}

// Debug reports whether SQL query logging is enabled
func Debug() bool {
	return getEnvBool("DATABASE_DEBUG", false)
}
