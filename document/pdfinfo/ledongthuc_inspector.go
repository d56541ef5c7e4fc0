package pdfinfo

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// LedongthucInspector parses PDFs with github.com/ledongthuc/pdf. It holds
// no state between calls.
type LedongthucInspector struct{}

// NewLedongthucInspector creates the pure Go inspector.
func NewLedongthucInspector() *LedongthucInspector {
	return &LedongthucInspector{}
}

// Inspect reads the page tree and the trailer's Info dictionary.
func (l *LedongthucInspector) Inspect(path string) (info Info, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to parse PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer f.Close()

	info.PageCount = r.NumPage()

	meta := r.Trailer().Key("Info")
	if !meta.IsNull() {
		info.Title = meta.Key("Title").Text()
		info.Author = meta.Key("Author").Text()
		info.Subject = meta.Key("Subject").Text()
	}
	return info, nil
}

// Close is a no-op.
func (l *LedongthucInspector) Close() error {
	return nil
}
