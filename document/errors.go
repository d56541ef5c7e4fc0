package document

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is returned by Save when no page has been appended.
	ErrEmptyDocument = errors.New("output document has no pages")
	// ErrReleased is returned by every call made after Release.
	ErrReleased = errors.New("output document already released")
)

// ImageDecodeError reports an image that could not be read or decoded.
type ImageDecodeError struct {
	Path string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %s: %v", e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// PdfOpenError reports a PDF that could not be parsed or imported.
type PdfOpenError struct {
	Path string
	Err  error
}

func (e *PdfOpenError) Error() string {
	return fmt.Sprintf("failed to open PDF %s: %v", e.Path, e.Err)
}

func (e *PdfOpenError) Unwrap() error { return e.Err }

// SaveError reports a failure writing the output file.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
