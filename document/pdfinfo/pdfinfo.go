// Package pdfinfo reads page counts and document metadata from PDF files.
//
// Three backends are available: a pure Go parser (ledongthuc/pdf, the
// default), MuPDF through go-fitz (requires CGo) and PDFium compiled to
// WebAssembly through go-pdfium.
package pdfinfo

import (
	"fmt"
	"strings"
)

// Info is what an Inspector reports about one PDF file.
type Info struct {
	PageCount int    `json:"pageCount"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Subject   string `json:"subject"`
}

// Inspector defines the interface for reading PDF structure
type Inspector interface {
	// Inspect opens the PDF at path and returns its page count and metadata.
	// An error means the file could not be parsed as a PDF.
	Inspect(path string) (Info, error)

	// Close cleans up any resources used by the inspector
	Close() error
}

// Backend names accepted by New.
const (
	BackendLedongthuc = "ledongthuc"
	BackendFitz       = "fitz"
	BackendPDFium     = "pdfium"
)

// New returns the inspector for the named backend. The empty name selects
// the pure Go backend.
func New(backend string) (Inspector, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLedongthuc:
		return NewLedongthucInspector(), nil
	case BackendFitz:
		return NewFitzInspector()
	case BackendPDFium:
		return NewPDFiumInspector()
	default:
		return nil, fmt.Errorf("unknown pdf inspector %q", backend)
	}
}
