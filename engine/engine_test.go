package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfmerge/config"
	"github.com/drummonds/pdfmerge/database"
	"github.com/drummonds/pdfmerge/internal/fixtures"
	"github.com/drummonds/pdfmerge/merge"
	"github.com/drummonds/pdfmerge/validator"
)

type testServer struct {
	handler *ServerHandler
	dir     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.NewRepository(config.ServerConfig{
		DatabaseType:   "sqlite",
		DatabaseDbname: filepath.Join(dir, "jobs.sqlite"),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	serverConfig := config.ServerConfig{
		DatabaseType:      "sqlite",
		OutputPath:        filepath.Join(dir, "output"),
		JobRetentionHours: 72,
		JobPruneInterval:  60,
	}
	merger := merge.New()
	handler := &ServerHandler{
		DB:           db,
		Echo:         echo.New(),
		ServerConfig: serverConfig,
		Runner:       NewRunner(db, merger, 8),
		Merger:       merger,
	}
	handler.RegisterRoutes()
	if err := handler.StartupChecks(); err != nil {
		t.Fatalf("Startup checks failed: %v", err)
	}
	return &testServer{handler: handler, dir: dir}
}

// startWorker runs the merge worker until the test ends
func (s *testServer) startWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handler.Runner.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.handler.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// waitForJob polls the job route until the job reaches a terminal status
func (s *testServer) waitForJob(t *testing.T, id string) database.Job {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		rec := s.request(t, http.MethodGet, "/api/jobs/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var job database.Job
		decode(t, rec, &job)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", id)
	return database.Job{}
}

func TestPostMergeRunsJob(t *testing.T) {
	s := newTestServer(t)
	s.startWorker(t)

	a := fixtures.Image(t, s.dir, "a.png", 120, 80)
	b := fixtures.Image(t, s.dir, "b.jpg", 60, 90)
	doc := fixtures.PDF(t, s.dir, "doc.pdf", 2, "doc")

	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{
		Files:  []string{a, b, doc},
		Output: "combined.pdf",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)
	wantOutput := filepath.Join(s.handler.ServerConfig.OutputPath, "combined.pdf")
	if accepted["output"] != wantOutput {
		t.Errorf("Expected output %s, got %s", wantOutput, accepted["output"])
	}

	job := s.waitForJob(t, accepted["jobId"])
	if job.Status != database.JobStatusCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", job.Progress)
	}
	if job.Inputs != 3 || job.Output != wantOutput || job.Layout != "auto 1x1, margin 0mm, spacing 0mm" {
		t.Errorf("Unexpected job record: %+v", job)
	}
	if job.Pages != 4 || job.Segments != 2 {
		t.Errorf("Expected 4 pages in 2 segments, got %d and %d", job.Pages, job.Segments)
	}
	if _, err := os.Stat(wantOutput); err != nil {
		t.Errorf("Output file missing: %v", err)
	}
}

func TestPostMergeGridLayout(t *testing.T) {
	s := newTestServer(t)
	s.startWorker(t)

	var files []string
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png"} {
		files = append(files, fixtures.Image(t, s.dir, name, 40, 40))
	}
	margin := 5.0
	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{
		Files:  files,
		Output: "grid.pdf",
		Layout: &LayoutRequest{PageSize: "A4", Rows: 2, Cols: 2, MarginMM: &margin},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)

	job := s.waitForJob(t, accepted["jobId"])
	if job.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", job.Pages)
	}
	if job.Layout != "A4 2x2, margin 5mm, spacing 0mm" {
		t.Errorf("Unexpected layout %q", job.Layout)
	}
}

func TestPostMergeRejectsInvalidRequests(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "ok.png", 10, 10)
	notes := fixtures.Text(t, s.dir, "notes.txt", "hello")

	tests := []struct {
		name   string
		req    MergeRequest
		status int
		kind   string
	}{
		{"empty input", MergeRequest{Output: "out.pdf"}, http.StatusBadRequest, "EmptyInput"},
		{"unsupported", MergeRequest{Files: []string{image, notes}, Output: "out.pdf"}, http.StatusBadRequest, "UnsupportedFormat"},
		{"missing", MergeRequest{Files: []string{filepath.Join(s.dir, "gone.png")}, Output: "out.pdf"}, http.StatusNotFound, "FileNotFound"},
		{"bad grid", MergeRequest{Files: []string{image}, Output: "out.pdf", Layout: &LayoutRequest{Rows: -1}}, http.StatusBadRequest, "InvalidLayout"},
		{"bad page size", MergeRequest{Files: []string{image}, Output: "out.pdf", Layout: &LayoutRequest{PageSize: "huge"}}, http.StatusBadRequest, "InvalidLayout"},
		{"escaping output", MergeRequest{Files: []string{image}, Output: "../out.pdf"}, http.StatusBadRequest, "SaveError"},
		{"absolute output elsewhere", MergeRequest{Files: []string{image}, Output: filepath.Join(s.dir, "out.pdf")}, http.StatusBadRequest, "SaveError"},
		{"output directory itself", MergeRequest{Files: []string{image}, Output: s.handler.ServerConfig.OutputPath}, http.StatusBadRequest, "SaveError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.request(t, http.MethodPost, "/api/merge", tt.req)
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["kind"] != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, body["kind"])
			}
		})
	}

	rec := s.request(t, http.MethodGet, "/api/jobs", nil)
	var jobs []database.Job
	decode(t, rec, &jobs)
	if len(jobs) != 0 {
		t.Errorf("Rejected requests should not create jobs, got %d", len(jobs))
	}
}

func TestPostMergeDefaultOutputName(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "ok.png", 10, 10)

	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{Files: []string{image}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)
	if filepath.Dir(accepted["output"]) != s.handler.ServerConfig.OutputPath {
		t.Errorf("Expected output inside %s, got %s", s.handler.ServerConfig.OutputPath, accepted["output"])
	}
	if !strings.HasPrefix(filepath.Base(accepted["output"]), "merged-") {
		t.Errorf("Unexpected default output name %s", accepted["output"])
	}
}

func TestPostMergeAbsoluteOutputInsideOutputPath(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "ok.png", 10, 10)
	want := filepath.Join(s.handler.ServerConfig.OutputPath, "reports", "..", "abs.pdf")

	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{Files: []string{image}, Output: want})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)
	if accepted["output"] != filepath.Join(s.handler.ServerConfig.OutputPath, "abs.pdf") {
		t.Errorf("Unexpected output %s", accepted["output"])
	}
}

func TestCancelQueuedJob(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "ok.png", 10, 10)

	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{Files: []string{image}, Output: "cancel.pdf"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)

	rec = s.request(t, http.MethodDelete, "/api/jobs/"+accepted["jobId"], nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	// The worker picks the job up already cancelled
	s.startWorker(t)
	job := s.waitForJob(t, accepted["jobId"])
	if job.Status != database.JobStatusCancelled {
		t.Errorf("Expected cancelled job, got %s", job.Status)
	}
	if _, err := os.Stat(accepted["output"]); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Cancelled job should not write output, stat returned %v", err)
	}

	rec = s.request(t, http.MethodDelete, "/api/jobs/"+accepted["jobId"], nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a finished job, got %d", rec.Code)
	}
}

func TestCancelJobErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodDelete, "/api/jobs/not-a-ulid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	rec = s.request(t, http.MethodDelete, "/api/jobs/"+ulid.Make().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestFailedJobRecordsError(t *testing.T) {
	s := newTestServer(t)
	s.startWorker(t)
	broken := filepath.Join(s.dir, "broken.png")
	if err := os.WriteFile(broken, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := s.request(t, http.MethodPost, "/api/merge", MergeRequest{Files: []string{broken}, Output: "broken.pdf"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decode(t, rec, &accepted)

	job := s.waitForJob(t, accepted["jobId"])
	if job.Status != database.JobStatusFailed {
		t.Fatalf("Expected failed job, got %s", job.Status)
	}
	if job.ErrorKind != "ImageDecodeError" || !strings.Contains(job.Error, "broken.png") {
		t.Errorf("Expected an ImageDecodeError naming broken.png, got %q %q", job.ErrorKind, job.Error)
	}
}

func TestListJobsStatusFilter(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	done, err := s.handler.DB.CreateJob(ctx, database.JobRequest{Inputs: 1, Output: "/tmp/done.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.handler.DB.CompleteJob(ctx, done.ID, 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handler.DB.CreateJob(ctx, database.JobRequest{Inputs: 2, Output: "/tmp/waiting.pdf"}); err != nil {
		t.Fatal(err)
	}

	var jobs []database.Job
	rec := s.request(t, http.MethodGet, "/api/jobs?status=Completed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &jobs)
	if len(jobs) != 1 || jobs[0].ID != done.ID {
		t.Errorf("Expected only the completed job, got %+v", jobs)
	}

	rec = s.request(t, http.MethodGet, "/api/jobs/active", nil)
	decode(t, rec, &jobs)
	if len(jobs) != 1 || jobs[0].Output != "/tmp/waiting.pdf" {
		t.Errorf("Expected only the pending job, got %+v", jobs)
	}

	rec = s.request(t, http.MethodGet, "/api/jobs?limit=1&offset=1", nil)
	decode(t, rec, &jobs)
	if len(jobs) != 1 {
		t.Errorf("Expected one job on the second page, got %d", len(jobs))
	}

	rec = s.request(t, http.MethodGet, "/api/jobs?status=done", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown status, got %d", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.request(t, http.MethodGet, "/api/jobs/"+ulid.Make().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	rec = s.request(t, http.MethodGet, "/api/jobs/active", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected an empty active list, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetFileInfo(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "photo.png", 64, 32)

	rec := s.request(t, http.MethodGet, "/api/fileinfo?path="+url.QueryEscape(image), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var info merge.FileInfo
	decode(t, rec, &info)
	if info.Kind != validator.Image {
		t.Errorf("Expected kind Image, got %v", info.Kind)
	}
	if info.Name != "photo.png" || info.Image == nil || info.Image.Width != 64 || info.Image.Height != 32 {
		t.Errorf("Unexpected file info: %+v", info)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"Image"`) {
		t.Errorf("Expected kind Image in %s", rec.Body.String())
	}

	rec = s.request(t, http.MethodGet, "/api/fileinfo?path="+url.QueryEscape(filepath.Join(s.dir, "gone.png")), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	rec = s.request(t, http.MethodGet, "/api/fileinfo", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestValidateFiles(t *testing.T) {
	s := newTestServer(t)
	image := fixtures.Image(t, s.dir, "a.png", 10, 10)
	doc := fixtures.PDF(t, s.dir, "b.pdf", 1, "b")
	notes := fixtures.Text(t, s.dir, "c.txt", "c")
	missing := filepath.Join(s.dir, "d.pdf")

	rec := s.request(t, http.MethodPost, "/api/validate", ValidateRequest{Files: []string{image, notes, doc, missing}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body map[string][]string
	decode(t, rec, &body)
	if strings.Join(body["valid"], ",") != image+","+doc {
		t.Errorf("Unexpected valid list %v", body["valid"])
	}
	if strings.Join(body["invalid"], ",") != notes+","+missing {
		t.Errorf("Unexpected invalid list %v", body["invalid"])
	}
}

func TestGetPageSizesAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/pagesizes", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"A4":{"widthMm":210,"heightMm":297}`) {
		t.Errorf("Unexpected page sizes %d %s", rec.Code, rec.Body.String())
	}

	rec = s.request(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = s.request(t, http.MethodGet, "/api/about", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"databaseType":"sqlite"`) {
		t.Errorf("Unexpected about response %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetSwaggerDoc(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/swagger.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	decode(t, rec, &doc)
	if doc.BasePath != "/api" {
		t.Errorf("Expected basePath /api, got %q", doc.BasePath)
	}
	for _, path := range []string{"/merge", "/jobs/{id}", "/fileinfo", "/health"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("API description is missing %s", path)
		}
	}
}

func TestStartupChecksFailInterruptedJobs(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	job, err := s.handler.DB.CreateJob(ctx, database.JobRequest{Inputs: 1, Output: "/tmp/x.pdf"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.handler.StartupChecks(); err != nil {
		t.Fatalf("Startup checks failed: %v", err)
	}
	got, err := s.handler.DB.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != database.JobStatusFailed {
		t.Errorf("Expected interrupted job to be failed, got %s", got.Status)
	}
	if info, err := os.Stat(s.handler.ServerConfig.OutputPath); err != nil || !info.IsDir() {
		t.Errorf("Output directory not created: %v", err)
	}
}

func TestStartupChecksRejectsFileOutputPath(t *testing.T) {
	dir := t.TempDir()
	file := fixtures.Text(t, dir, "output", "not a directory")
	if err := outputDirectoryChecks(config.ServerConfig{OutputPath: file}); err == nil {
		t.Error("Expected an error when the output path is a file")
	}
}

func TestPruneJobs(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	job, err := s.handler.DB.CreateJob(ctx, database.JobRequest{Inputs: 1, Output: "/tmp/old.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.handler.DB.CompleteJob(ctx, job.ID, 1, 1); err != nil {
		t.Fatal(err)
	}

	// Keep jobs for 72h: nothing is old enough yet
	s.handler.pruneJobs()
	if _, err := s.handler.DB.GetJob(ctx, job.ID); err != nil {
		t.Fatalf("Job pruned too early: %v", err)
	}

	// A negative retention puts the cutoff in the future
	s.handler.ServerConfig.JobRetentionHours = -1
	s.handler.pruneJobs()
	if _, err := s.handler.DB.GetJob(ctx, job.ID); !errors.Is(err, database.ErrJobNotFound) {
		t.Errorf("Expected job to be pruned, got %v", err)
	}
}

func TestInitializeSchedules(t *testing.T) {
	s := newTestServer(t)
	c, err := s.handler.InitializeSchedules()
	if err != nil {
		t.Fatalf("Failed to initialize schedules: %v", err)
	}
	defer c.Stop()
	if len(c.Entries()) != 1 {
		t.Errorf("Expected one scheduled job, got %d", len(c.Entries()))
	}
}

func TestRunnerQueueFull(t *testing.T) {
	s := newTestServer(t)
	runner := NewRunner(s.handler.DB, merge.New(), 1)
	if err := runner.Submit(ulid.Make(), merge.Job{}); err != nil {
		t.Fatalf("First submit failed: %v", err)
	}
	second := ulid.Make()
	if err := runner.Submit(second, merge.Job{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}
	if runner.Cancel(second) {
		t.Error("A rejected job should not be cancellable")
	}
	if runner.Pending() != 1 {
		t.Errorf("Expected 1 pending job, got %d", runner.Pending())
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[merge.ErrorKind]int{
		merge.KindEmptyInput:        http.StatusBadRequest,
		merge.KindUnsupportedFormat: http.StatusBadRequest,
		merge.KindInvalidLayout:     http.StatusBadRequest,
		merge.KindFileNotFound:      http.StatusNotFound,
		merge.KindImageDecode:       http.StatusUnprocessableEntity,
		merge.KindPdfOpen:           http.StatusUnprocessableEntity,
		merge.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}
