package merge

import (
	"github.com/drummonds/pdfmerge/validator"
)

// FileEntry is one input path and its position in the original input.
type FileEntry struct {
	Path    string `json:"path"`
	Ordinal int    `json:"ordinal"`
}

// Segment is a unit of processing: either an ImageRun or a PdfItem.
type Segment interface {
	// Entries returns the file entries covered by the segment, in input order.
	Entries() []FileEntry
	segment()
}

// ImageRun is a maximal run of consecutive image entries.
type ImageRun struct {
	Images []FileEntry
}

// PdfItem is a single PDF entry.
type PdfItem struct {
	Entry FileEntry
}

func (r ImageRun) Entries() []FileEntry { return r.Images }
func (p PdfItem) Entries() []FileEntry  { return []FileEntry{p.Entry} }

func (ImageRun) segment() {}
func (PdfItem) segment()  {}

// Paths returns the image paths of the run.
func (r ImageRun) Paths() []string {
	paths := make([]string, len(r.Images))
	for i, e := range r.Images {
		paths[i] = e.Path
	}
	return paths
}

// Segmentize partitions entries into segments, grouping only contiguous
// images, so concatenating the segments' entries gives back entries
// unchanged. It fails on the first entry that is neither an image nor a PDF.
func Segmentize(entries []FileEntry, classify func(string) validator.Kind) ([]Segment, error) {
	var (
		segments []Segment
		run      []FileEntry
	)
	flush := func() {
		if len(run) > 0 {
			segments = append(segments, ImageRun{Images: run})
			run = nil
		}
	}

	for _, e := range entries {
		switch classify(e.Path) {
		case validator.Image:
			run = append(run, e)
		case validator.PDF:
			flush()
			segments = append(segments, PdfItem{Entry: e})
		default:
			return nil, &validator.UnsupportedFormatError{Path: e.Path}
		}
	}
	flush()
	return segments, nil
}
