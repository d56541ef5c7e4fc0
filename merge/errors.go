package merge

import (
	"errors"

	"github.com/drummonds/pdfmerge/document"
	"github.com/drummonds/pdfmerge/layout"
	"github.com/drummonds/pdfmerge/validator"
)

var (
	// ErrEmptyInput is returned when a job has no entries.
	ErrEmptyInput = errors.New("no input files")
	// ErrCancelled is returned when a job is cancelled by its caller. When
	// the cancellation came from a context the context error is wrapped too.
	ErrCancelled = errors.New("merge cancelled")
)

// ErrorKind classifies the errors a merge can return.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindEmptyInput
	KindUnsupportedFormat
	KindFileNotFound
	KindInvalidLayout
	KindImageDecode
	KindPdfOpen
	KindEmptyDocument
	KindSave
	KindCancelled
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindNone:              "None",
	KindEmptyInput:        "EmptyInput",
	KindUnsupportedFormat: "UnsupportedFormat",
	KindFileNotFound:      "FileNotFound",
	KindInvalidLayout:     "InvalidLayout",
	KindImageDecode:       "ImageDecodeError",
	KindPdfOpen:           "PdfOpenError",
	KindEmptyDocument:     "EmptyDocument",
	KindSave:              "SaveError",
	KindCancelled:         "Cancelled",
	KindInternal:          "Internal",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Internal"
}

// IsValidation reports whether the kind is detected before any processing.
func (k ErrorKind) IsValidation() bool {
	switch k {
	case KindEmptyInput, KindUnsupportedFormat, KindFileNotFound, KindInvalidLayout:
		return true
	}
	return false
}

// KindOf classifies err. Cancellation is checked first so a cancelled job
// is never reported as a failure.
func KindOf(err error) ErrorKind {
	var (
		unsupported *validator.UnsupportedFormatError
		notFound    *validator.FileNotFoundError
		invalid     *layout.InvalidLayoutError
		decode      *document.ImageDecodeError
		pdfOpen     *document.PdfOpenError
		save        *document.SaveError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrEmptyInput):
		return KindEmptyInput
	case errors.As(err, &unsupported):
		return KindUnsupportedFormat
	case errors.As(err, &notFound):
		return KindFileNotFound
	case errors.As(err, &invalid):
		return KindInvalidLayout
	case errors.As(err, &decode):
		return KindImageDecode
	case errors.As(err, &pdfOpen):
		return KindPdfOpen
	case errors.Is(err, document.ErrEmptyDocument):
		return KindEmptyDocument
	case errors.As(err, &save):
		return KindSave
	default:
		return KindInternal
	}
}
