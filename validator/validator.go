// Package validator classifies merge inputs by file extension and checks
// that they exist as regular files.
package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the classification of an input path.
type Kind int

const (
	Unsupported Kind = iota
	Image
	PDF
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "Image"
	case PDF:
		return "PDF"
	default:
		return "Unknown"
	}
}

// MarshalText renders the kind by name in JSON responses.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Image":
		*k = Image
	case "PDF":
		*k = PDF
	case "Unknown":
		*k = Unsupported
	default:
		return fmt.Errorf("unknown file kind %q", text)
	}
	return nil
}

var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	pdfExtensions   = map[string]bool{".pdf": true}
)

// UnsupportedFormatError reports a path whose extension is neither an image
// nor a PDF, or which is not a regular file.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Path)
}

// FileNotFoundError reports an input path that does not exist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// Classify returns the kind of path based solely on its extension.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return Image
	case pdfExtensions[ext]:
		return PDF
	default:
		return Unsupported
	}
}

// IsImage reports whether path has an image extension
func IsImage(path string) bool { return Classify(path) == Image }

// IsPDF reports whether path has a PDF extension
func IsPDF(path string) bool { return Classify(path) == PDF }

// Check verifies that path exists and is a regular file.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FileNotFoundError{Path: path, Err: err}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return &UnsupportedFormatError{Path: path}
	}
	return nil
}

// IsSupported reports whether path has a supported extension and exists as a
// regular file.
func IsSupported(path string) bool {
	return Classify(path) != Unsupported && Check(path) == nil
}

// ValidateFiles splits paths into supported files and everything else,
// keeping the input order within each list.
func ValidateFiles(paths []string) (valid []string, invalid []string) {
	for _, path := range paths {
		if IsSupported(path) {
			valid = append(valid, path)
		} else {
			invalid = append(invalid, path)
		}
	}
	return valid, invalid
}

// SupportedExtensions lists every accepted extension, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(imageExtensions)+len(pdfExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	for ext := range pdfExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
