package pdfinfo

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzInspector implements PDF inspection using go-fitz (requires CGo and MuPDF)
type FitzInspector struct {
}

// NewFitzInspector creates a new Fitz-based PDF inspector
func NewFitzInspector() (*FitzInspector, error) {
	return &FitzInspector{}, nil
}

// Inspect opens the document with MuPDF and reads its metadata map
func (f *FitzInspector) Inspect(path string) (Info, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Info{}, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	meta := doc.Metadata()
	return Info{
		PageCount: doc.NumPage(),
		Title:     meta["title"],
		Author:    meta["author"],
		Subject:   meta["subject"],
	}, nil
}

// Close cleans up resources (no-op for Fitz inspector as doc is closed per-call)
func (f *FitzInspector) Close() error {
	return nil
}
