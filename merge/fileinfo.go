package merge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/drummonds/pdfmerge/document"
	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/validator"
)

// FileInfo is the read-only description of one input file.
type FileInfo struct {
	Name      string              `json:"name"`
	Path      string              `json:"path"`
	SizeBytes int64               `json:"sizeBytes"`
	Kind      validator.Kind      `json:"kind"`
	Image     *document.ImageInfo `json:"image,omitempty"`
	PDF       *pdfinfo.Info       `json:"pdf,omitempty"`
	Error     string              `json:"error,omitempty"` // set when reading the details failed
}

// GetFileInfo describes path. Only a missing or unreadable file is an
// error; failing to read image or PDF details is recorded in Error.
func GetFileInfo(path string, inspector pdfinfo.Inspector) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &validator.FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	info := &FileInfo{
		Name:      filepath.Base(path),
		Path:      path,
		SizeBytes: stat.Size(),
		Kind:      validator.Classify(path),
	}
	if !stat.Mode().IsRegular() {
		info.Kind = validator.Unsupported
		return info, nil
	}

	switch info.Kind {
	case validator.Image:
		img, err := document.InspectImage(path)
		if err != nil {
			info.Error = err.Error()
			break
		}
		info.Image = &img
	case validator.PDF:
		if inspector == nil {
			inspector = pdfinfo.NewLedongthucInspector()
		}
		doc, err := inspector.Inspect(path)
		if err != nil {
			info.Error = err.Error()
			break
		}
		info.PDF = &doc
	}
	return info, nil
}
