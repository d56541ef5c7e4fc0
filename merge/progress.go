package merge

import (
	"log/slog"
)

// ProgressSink receives progress reports from a running merge. current
// never decreases and equals total only in the final report of a
// successful merge.
type ProgressSink interface {
	Report(current, total int, message string)
}

// Canceller is an optional ProgressSink capability. A merge polls it at
// segment boundaries and stops with ErrCancelled once it returns true.
type Canceller interface {
	Cancelled() bool
}

// NopSink discards reports.
type NopSink struct{}

func (NopSink) Report(int, int, string) {}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(current, total int, message string)

func (f SinkFunc) Report(current, total int, message string) { f(current, total, message) }

// LogSink writes each report to a structured logger at info level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(current, total int, message string) {
	logger := s.Logger
	if logger == nil {
		logger = Logger
	}
	logger.Info(message, "current", current, "total", total)
}

// progress enforces the reporting contract on top of a sink.
type progress struct {
	sink  ProgressSink
	total int
	done  int
	last  int
}

func newProgress(sink ProgressSink, total int) *progress {
	if sink == nil {
		sink = NopSink{}
	}
	return &progress{sink: sink, total: total}
}

// advance marks n more entries processed.
func (p *progress) advance(n int) {
	p.done += n
}

// report sends the processed count, held below total until complete is
// called.
func (p *progress) report(message string) {
	current := min(p.done, p.total-1)
	current = max(current, p.last)
	p.last = current
	p.sink.Report(current, p.total, message)
}

func (p *progress) complete(message string) {
	p.last = p.total
	p.sink.Report(p.total, p.total, message)
}
