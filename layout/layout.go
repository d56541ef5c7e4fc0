// Package layout computes page and cell geometry for image grids.
//
// All geometry is expressed in PDF points. Margins, spacing and explicit
// page sizes are configured in millimetres and converted once with
// MMToPoints. When no page size is configured the page takes the pixel
// dimensions of the first image on it, unconverted, while margin and spacing
// stay in points; callers depend on this mixed-unit behaviour.
package layout

import (
	"fmt"
	"image"
	"math"
)

// PointsPerMM is the millimetre to point conversion factor.
const PointsPerMM = 2.83465

// MMToPoints converts millimetres to points.
func MMToPoints(mm float64) float64 {
	return mm * PointsPerMM
}

// PageSize is an explicit page size in millimetres.
type PageSize struct {
	WidthMM  float64 `json:"widthMm"`
	HeightMM float64 `json:"heightMm"`
}

// Config describes how images are laid out on composed pages.
type Config struct {
	PageSize  *PageSize `json:"pageSize,omitempty"` // nil means use the first image's pixel size
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	MarginMM  float64   `json:"marginMm"`
	SpacingMM float64   `json:"spacingMm"`
}

// DefaultConfig is one image per page, sized to the image, with no margin.
func DefaultConfig() Config {
	return Config{Rows: 1, Cols: 1}
}

// PerPage is the number of cells on one page.
func (c Config) PerPage() int {
	return c.Rows * c.Cols
}

// Validate rejects grids smaller than 1x1, negative margins or spacing, and
// non-positive explicit page sizes.
func (c Config) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return &InvalidLayoutError{Reason: fmt.Sprintf("grid must be at least 1x1, got %dx%d", c.Rows, c.Cols)}
	}
	if c.MarginMM < 0 || math.IsNaN(c.MarginMM) {
		return &InvalidLayoutError{Reason: fmt.Sprintf("margin must be >= 0, got %v", c.MarginMM)}
	}
	if c.SpacingMM < 0 || math.IsNaN(c.SpacingMM) {
		return &InvalidLayoutError{Reason: fmt.Sprintf("spacing must be >= 0, got %v", c.SpacingMM)}
	}
	if c.PageSize != nil && (c.PageSize.WidthMM <= 0 || c.PageSize.HeightMM <= 0) {
		return &InvalidLayoutError{Reason: fmt.Sprintf("page size must be positive, got %vx%v mm", c.PageSize.WidthMM, c.PageSize.HeightMM)}
	}
	return nil
}

// InvalidLayoutError reports a layout that cannot produce drawable cells.
type InvalidLayoutError struct {
	Reason string
}

func (e *InvalidLayoutError) Error() string {
	return "invalid layout: " + e.Reason
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner
// of the page and y growing downwards.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Geometry is the page size and the row-major cell rectangles of one page.
type Geometry struct {
	PageWidth  float64
	PageHeight float64
	CellWidth  float64
	CellHeight float64
	Margin     float64
	Spacing    float64
	Cells      []Rect
}

// Plan computes the geometry of a page laid out with cfg. firstImage is the
// pixel size of the first image placed on the page; it is only consulted
// when cfg has no explicit page size.
func Plan(cfg Config, firstImage image.Point) (Geometry, error) {
	if err := cfg.Validate(); err != nil {
		return Geometry{}, err
	}

	var pageW, pageH float64
	if cfg.PageSize != nil {
		pageW = MMToPoints(cfg.PageSize.WidthMM)
		pageH = MMToPoints(cfg.PageSize.HeightMM)
	} else {
		if firstImage.X <= 0 || firstImage.Y <= 0 {
			return Geometry{}, &InvalidLayoutError{Reason: fmt.Sprintf("image has no pixels (%dx%d)", firstImage.X, firstImage.Y)}
		}
		pageW = float64(firstImage.X)
		pageH = float64(firstImage.Y)
	}

	margin := MMToPoints(cfg.MarginMM)
	spacing := MMToPoints(cfg.SpacingMM)

	availableW := pageW - 2*margin - float64(cfg.Cols-1)*spacing
	availableH := pageH - 2*margin - float64(cfg.Rows-1)*spacing
	cellW := availableW / float64(cfg.Cols)
	cellH := availableH / float64(cfg.Rows)
	if cellW <= 0 || cellH <= 0 {
		return Geometry{}, &InvalidLayoutError{
			Reason: fmt.Sprintf("margin and spacing leave no room for %dx%d cells on a %.2fx%.2f pt page", cfg.Rows, cfg.Cols, pageW, pageH),
		}
	}

	cells := make([]Rect, 0, cfg.PerPage())
	for i := 0; i < cfg.PerPage(); i++ {
		row := i / cfg.Cols
		col := i % cfg.Cols
		cells = append(cells, Rect{
			X: margin + float64(col)*(cellW+spacing),
			Y: margin + float64(row)*(cellH+spacing),
			W: cellW,
			H: cellH,
		})
	}

	return Geometry{
		PageWidth:  pageW,
		PageHeight: pageH,
		CellWidth:  cellW,
		CellHeight: cellH,
		Margin:     margin,
		Spacing:    spacing,
		Cells:      cells,
	}, nil
}

// SplitBatches cuts items into consecutive sub-batches of perPage items; the
// last one may be shorter.
func SplitBatches[T any](items []T, perPage int) [][]T {
	if perPage < 1 {
		perPage = 1
	}
	batches := make([][]T, 0, (len(items)+perPage-1)/perPage)
	for start := 0; start < len(items); start += perPage {
		end := min(start+perPage, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// Fit scales an image of w x h into cell, keeping its aspect ratio, and
// centres the result. The image never exceeds the cell.
func Fit(cell Rect, w, h float64) Rect {
	if w <= 0 || h <= 0 {
		return cell
	}
	scale := math.Min(cell.W/w, cell.H/h)
	fw := w * scale
	fh := h * scale
	return Rect{
		X: cell.X + (cell.W-fw)/2,
		Y: cell.Y + (cell.H-fh)/2,
		W: fw,
		H: fh,
	}
}
