package engine

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/swaggo/swag"

	"github.com/drummonds/pdfmerge/config"
	"github.com/drummonds/pdfmerge/database"
	_ "github.com/drummonds/pdfmerge/docs" // registers the OpenAPI description
	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/internal/build"
	"github.com/drummonds/pdfmerge/layout"
	"github.com/drummonds/pdfmerge/merge"
	"github.com/drummonds/pdfmerge/validator"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Runner       *Runner
	Merger       *merge.Merger
	Inspector    pdfinfo.Inspector
}

// LayoutRequest overrides parts of the server's default layout. PageSize
// is a preset name or "WxH" in millimetres; WidthMM and HeightMM are used
// when it is empty.
type LayoutRequest struct {
	PageSize  string   `json:"pageSize"`
	WidthMM   float64  `json:"widthMm"`
	HeightMM  float64  `json:"heightMm"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	MarginMM  *float64 `json:"marginMm"`
	SpacingMM *float64 `json:"spacingMm"`
}

// MergeRequest is the body of POST /api/merge
type MergeRequest struct {
	Files  []string       `json:"files"`
	Output string         `json:"output"`
	Layout *LayoutRequest `json:"layout"`
}

// ValidateRequest is the body of POST /api/validate
type ValidateRequest struct {
	Files []string `json:"files"`
}

// RegisterRoutes adds the API routes to the echo instance, all under /api/*
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo

	// Merge API routes
	e.POST("/api/merge", serverHandler.PostMerge)
	e.POST("/api/validate", serverHandler.ValidateFiles)
	e.GET("/api/fileinfo", serverHandler.GetFileInfo)
	e.GET("/api/pagesizes", serverHandler.GetPageSizes)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.ListJobs)
	e.GET("/api/jobs/active", serverHandler.ListActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
	e.DELETE("/api/jobs/:id", serverHandler.CancelJob)

	// Admin API routes
	e.GET("/api/about", serverHandler.GetAboutInfo)
	e.GET("/api/health", serverHandler.GetHealth)
	e.GET("/api/swagger.json", serverHandler.GetSwaggerDoc)
}

// PostMerge validates a merge request and queues it
// @Summary Queue a merge
// @Description Validate the input files and layout, record a job and queue it for the merge worker
// @Tags Merge
// @Accept json
// @Produce json
// @Param request body MergeRequest true "Files, output and layout"
// @Success 202 {object} map[string]interface{} "Job ID"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "Input file not found"
// @Failure 503 {object} map[string]interface{} "Queue full"
// @Router /merge [post]
func (serverHandler *ServerHandler) PostMerge(c echo.Context) error {
	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request body",
		})
	}

	cfg, err := serverHandler.resolveLayout(req.Layout)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
			"kind":  merge.KindInvalidLayout.String(),
		})
	}

	output, err := serverHandler.resolveOutput(req.Output)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
			"kind":  merge.KindSave.String(),
		})
	}

	job := merge.NewJob(req.Files, output, cfg)
	if err := serverHandler.Merger.Validate(job); err != nil {
		kind := merge.KindOf(err)
		Logger.Warn("Rejected merge request", "kind", kind, "error", err)
		return c.JSON(statusForKind(kind), map[string]interface{}{
			"error": err.Error(),
			"kind":  kind.String(),
		})
	}

	ctx := c.Request().Context()
	record, err := serverHandler.DB.CreateJob(ctx, database.JobRequest{
		Inputs: len(req.Files),
		Output: output,
		Layout: cfg.String(),
	})
	if err != nil {
		Logger.Error("Failed to create job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}

	if err := serverHandler.Runner.Submit(record.ID, job); err != nil {
		Logger.Warn("Failed to queue merge job", "jobID", record.ID, "error", err)
		if err := serverHandler.DB.FailJob(ctx, record.ID, "QueueFull", err.Error()); err != nil {
			Logger.Error("Failed to record rejected job", "jobID", record.ID, "error", err)
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": err.Error(),
			"jobId": record.ID.String(),
		})
	}

	Logger.Info("Queued merge job", "jobID", record.ID, "files", len(req.Files), "output", output)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  record.ID.String(),
		"output": output,
	})
}

// resolveLayout applies the overrides in req to the server default layout
func (serverHandler *ServerHandler) resolveLayout(req *LayoutRequest) (layout.Config, error) {
	cfg := serverHandler.ServerConfig.Merge
	if cfg == (layout.Config{}) {
		cfg = layout.DefaultConfig()
	}
	if req == nil {
		return cfg, nil
	}

	switch {
	case req.PageSize != "":
		pageSize, err := layout.ParsePageSize(req.PageSize)
		if err != nil {
			return cfg, err
		}
		cfg.PageSize = pageSize
	case req.WidthMM != 0 || req.HeightMM != 0:
		cfg.PageSize = &layout.PageSize{WidthMM: req.WidthMM, HeightMM: req.HeightMM}
	}
	if req.Rows != 0 {
		cfg.Rows = req.Rows
	}
	if req.Cols != 0 {
		cfg.Cols = req.Cols
	}
	if req.MarginMM != nil {
		cfg.MarginMM = *req.MarginMM
	}
	if req.SpacingMM != nil {
		cfg.SpacingMM = *req.SpacingMM
	}
	return cfg, nil
}

// resolveOutput places relative or empty outputs inside the output
// directory. Absolute outputs must already lie inside it.
func (serverHandler *ServerHandler) resolveOutput(output string) (string, error) {
	if output == "" {
		output = fmt.Sprintf("merged-%s.pdf", strings.ToLower(ulid.Make().String()))
	}
	root := filepath.Clean(serverHandler.ServerConfig.OutputPath)
	resolved := filepath.Clean(output)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, output)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output %q escapes the output directory", output)
	}
	return resolved, nil
}

// statusForKind maps a merge error kind onto an HTTP status
func statusForKind(kind merge.ErrorKind) int {
	switch kind {
	case merge.KindEmptyInput, merge.KindUnsupportedFormat, merge.KindInvalidLayout, merge.KindSave:
		return http.StatusBadRequest
	case merge.KindFileNotFound:
		return http.StatusNotFound
	case merge.KindImageDecode, merge.KindPdfOpen, merge.KindEmptyDocument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ValidateFiles splits the given paths into mergeable and rejected files
// @Summary Validate input files
// @Description Report which paths are supported existing images or PDFs
// @Tags Merge
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Paths to check"
// @Success 200 {object} map[string]interface{} "Valid and invalid paths"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Router /validate [post]
func (serverHandler *ServerHandler) ValidateFiles(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request body",
		})
	}
	valid, invalid := validator.ValidateFiles(req.Files)
	if valid == nil {
		valid = []string{}
	}
	if invalid == nil {
		invalid = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":   valid,
		"invalid": invalid,
	})
}

// GetFileInfo describes one input file
// @Summary Get file information
// @Description Size, kind and image or PDF details of a file on the server
// @Tags Merge
// @Produce json
// @Param path query string true "Path of the file"
// @Success 200 {object} merge.FileInfo "File information"
// @Failure 400 {object} map[string]interface{} "Missing path"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /fileinfo [get]
func (serverHandler *ServerHandler) GetFileInfo(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "path query parameter is required",
		})
	}

	info, err := merge.GetFileInfo(path, serverHandler.Inspector)
	if err != nil {
		var notFound *validator.FileNotFoundError
		if errors.As(err, &notFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": err.Error(),
			})
		}
		Logger.Error("Failed to get file info", "path", path, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, info)
}

// GetPageSizes lists the page size presets
// @Summary List page sizes
// @Description Named page sizes accepted in a merge layout, in millimetres
// @Tags Merge
// @Produce json
// @Success 200 {object} map[string]layout.PageSize "Presets"
// @Router /pagesizes [get]
func (serverHandler *ServerHandler) GetPageSizes(c echo.Context) error {
	return c.JSON(http.StatusOK, layout.Presets)
}

// GetAboutInfo returns information about the application
// @Summary Get application information
// @Description Retrieve information about the application configuration, version, and database
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Application information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	cfg := serverHandler.ServerConfig
	aboutInfo := map[string]interface{}{
		"version":             build.Version,
		"databaseType":        cfg.DatabaseType,
		"databaseHost":        cfg.DatabaseHost,
		"databasePort":        cfg.DatabasePort,
		"databaseName":        cfg.DatabaseDbname,
		"outputPath":          cfg.OutputPath,
		"pdfInspector":        cfg.PDFInspector,
		"defaultLayout":       cfg.Merge,
		"supportedExtensions": validator.SupportedExtensions(),
	}
	return c.JSON(http.StatusOK, aboutInfo)
}

// GetHealth reports that the server is up
// @Summary Health check
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Status"
// @Router /health [get]
func (serverHandler *ServerHandler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    build.Version,
		"queuedJobs": serverHandler.Runner.Pending(),
	})
}

// GetSwaggerDoc serves the OpenAPI description of this API
func (serverHandler *ServerHandler) GetSwaggerDoc(c echo.Context) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		Logger.Error("Failed to render API description", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "API description unavailable",
		})
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, []byte(doc))
}
