// Package merge combines an ordered list of images and PDFs into one PDF.
//
// A merge validates every input before touching the output, groups
// consecutive images into runs, and appends each run (laid out on one or
// more composed pages) or PDF to a single output document in input order.
// The output file is only created once every page has been appended.
package merge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/drummonds/pdfmerge/document"
	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/layout"
	"github.com/drummonds/pdfmerge/validator"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// State is a step of the merge state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSegmenting
	StateProcessing
	StateSaving
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateSegmenting:
		return "Segmenting"
	case StateProcessing:
		return "Processing"
	case StateSaving:
		return "Saving"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateObserver is told about every transition. segment is the index of the
// segment being processed and -1 for every other state.
type StateObserver func(state State, segment int)

// Job is one merge invocation.
type Job struct {
	Entries    []FileEntry   `json:"entries"`
	Layout     layout.Config `json:"layout"`
	OutputPath string        `json:"outputPath"`
}

// NewJob numbers paths in order. A zero cfg means layout.DefaultConfig.
func NewJob(paths []string, outputPath string, cfg layout.Config) Job {
	entries := make([]FileEntry, len(paths))
	for i, p := range paths {
		entries[i] = FileEntry{Path: p, Ordinal: i}
	}
	return Job{Entries: entries, Layout: cfg, OutputPath: outputPath}
}

func (j Job) layoutConfig() layout.Config {
	if j.Layout == (layout.Config{}) {
		return layout.DefaultConfig()
	}
	return j.Layout
}

// Result describes a successful merge.
type Result struct {
	OutputPath string `json:"outputPath"`
	Pages      int    `json:"pages"`
	Entries    int    `json:"entries"`
	Segments   int    `json:"segments"`
}

// Merger runs merge jobs. The zero value is not usable; call New.
type Merger struct {
	inspector pdfinfo.Inspector
	composer  *document.Composer
	classify  func(string) validator.Kind
	observer  StateObserver
	logger    *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithInspector sets the backend used to count PDF pages.
func WithInspector(inspector pdfinfo.Inspector) Option {
	return func(m *Merger) { m.inspector = inspector }
}

// WithClassifier replaces validator.Classify.
func WithClassifier(classify func(string) validator.Kind) Option {
	return func(m *Merger) { m.classify = classify }
}

// WithStateObserver registers a callback for state transitions.
func WithStateObserver(observer StateObserver) Option {
	return func(m *Merger) { m.observer = observer }
}

// WithLogger sets the logger for this Merger instead of the package Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) { m.logger = logger }
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		composer: &document.Composer{},
		classify: validator.Classify,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.inspector == nil {
		m.inspector = pdfinfo.NewLedongthucInspector()
	}
	return m
}

// Merge runs job with a default Merger.
func Merge(ctx context.Context, job Job, sink ProgressSink) (*Result, error) {
	return New().Merge(ctx, job, sink)
}

// Merge runs job to completion on the calling goroutine. sink may be nil.
// Cancellation, through ctx or a sink implementing Canceller, is only
// observed between segments and before saving.
func (m *Merger) Merge(ctx context.Context, job Job, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	logger := m.logger
	if logger == nil {
		logger = Logger
	}
	logger = logger.With("output", job.OutputPath)
	state := StateIdle
	enter := func(s State, segment int) {
		logger.Debug("Merge state", "from", state, "to", s, "segment", segment)
		state = s
		if m.observer != nil {
			m.observer(s, segment)
		}
	}
	abort := func(err error) (*Result, error) {
		if errors.Is(err, ErrCancelled) {
			logger.Warn("Merge cancelled", "state", state)
		} else {
			logger.Error("Merge failed", "state", state, "kind", KindOf(err), "error", err)
		}
		enter(StateAborted, -1)
		return nil, err
	}

	enter(StateValidating, -1)
	cfg := job.layoutConfig()
	if err := m.validate(job, cfg); err != nil {
		return abort(err)
	}

	enter(StateSegmenting, -1)
	segments, err := Segmentize(job.Entries, m.classify)
	if err != nil {
		return abort(err)
	}

	total := len(job.Entries)
	prog := newProgress(sink, total)
	prog.report(fmt.Sprintf("Starting merge of %d files", total))

	out := document.NewAssembler(m.inspector)
	defer out.Release()

	for i, seg := range segments {
		if err := cancelled(ctx, sink); err != nil {
			return abort(err)
		}
		enter(StateProcessing, i)
		if err := m.process(out, seg, cfg, prog); err != nil {
			return abort(err)
		}
	}

	if err := cancelled(ctx, sink); err != nil {
		return abort(err)
	}
	enter(StateSaving, -1)
	prog.report(fmt.Sprintf("Saving %s", filepath.Base(job.OutputPath)))
	if err := out.Save(job.OutputPath); err != nil {
		return abort(err)
	}
	pages := out.PageCount()
	out.Release()

	enter(StateDone, -1)
	prog.complete(fmt.Sprintf("Merge complete: %d pages written to %s", pages, filepath.Base(job.OutputPath)))
	logger.Info("Merge complete", "entries", total, "segments", len(segments), "pages", pages)

	return &Result{
		OutputPath: job.OutputPath,
		Pages:      pages,
		Entries:    total,
		Segments:   len(segments),
	}, nil
}

// Validate runs the checks Merge performs before touching any input, so a
// caller can reject a job before queueing it.
func (m *Merger) Validate(job Job) error {
	return m.validate(job, job.layoutConfig())
}

// validate checks everything that can be checked before processing:
// classification of every entry first, then existence, then the layout.
func (m *Merger) validate(job Job, cfg layout.Config) error {
	if len(job.Entries) == 0 {
		return ErrEmptyInput
	}
	for _, e := range job.Entries {
		if m.classify(e.Path) == validator.Unsupported {
			return &validator.UnsupportedFormatError{Path: e.Path}
		}
	}
	for _, e := range job.Entries {
		if err := validator.Check(e.Path); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// With a fixed page size the cell geometry does not depend on the inputs.
	if cfg.PageSize != nil {
		if _, err := layout.Plan(cfg, image.Point{}); err != nil {
			return err
		}
	}
	if job.OutputPath == "" {
		return &document.SaveError{Path: job.OutputPath, Err: errors.New("no output path")}
	}
	return nil
}

func (m *Merger) process(out *document.Assembler, seg Segment, cfg layout.Config, prog *progress) error {
	switch s := seg.(type) {
	case ImageRun:
		n := len(s.Images)
		prog.report(fmt.Sprintf("Converting %d images", n))
		pages, err := m.composer.Compose(s.Paths(), cfg)
		if err != nil {
			return err
		}
		if err := out.AppendComposedPages(pages); err != nil {
			return err
		}
		prog.advance(n)
		prog.report(fmt.Sprintf("Converted %d images into %d pages", n, len(pages)))
	case PdfItem:
		name := filepath.Base(s.Entry.Path)
		prog.report(fmt.Sprintf("Merging %s", name))
		added, err := out.AppendExistingDocument(s.Entry.Path)
		if err != nil {
			return err
		}
		prog.advance(1)
		prog.report(fmt.Sprintf("Merged %s (%d pages)", name, added))
	default:
		return fmt.Errorf("unknown segment type %T", seg)
	}
	return nil
}

// cancelled returns ErrCancelled once ctx is done or the sink asks to stop.
func cancelled(ctx context.Context, sink ProgressSink) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if c, ok := sink.(Canceller); ok && c.Cancelled() {
		return ErrCancelled
	}
	return nil
}
