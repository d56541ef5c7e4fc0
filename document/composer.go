// Package document turns images and existing PDFs into pages of a single
// output PDF.
package document

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/drummonds/pdfmerge/layout"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// PlacedImage is one encoded image and the rectangle it is drawn into.
type PlacedImage struct {
	Path string      // source file, for error reporting
	Type string      // gofpdf image type, "PNG" or "JPG"
	Data []byte      // encoded payload
	Rect layout.Rect // fitted rectangle in points
}

// ComposedPage is a page of images ready to be appended to an Assembler.
type ComposedPage struct {
	Width  float64
	Height float64
	Images []PlacedImage
}

// Composer lays out runs of images onto pages.
type Composer struct {
	// JPEGQuality is used when re-encoding JPEG sources. Zero means 95.
	JPEGQuality int
}

type decodedImage struct {
	path    string
	size    image.Point
	imgType string
	data    []byte
}

// Compose decodes every image in paths and returns one page per sub-batch
// of cfg.Rows*cfg.Cols images, in order. If any image fails to decode no
// pages are returned.
func (c *Composer) Compose(paths []string, cfg layout.Config) ([]ComposedPage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	decoded := make([]decodedImage, 0, len(paths))
	for _, path := range paths {
		d, err := c.decode(path)
		if err != nil {
			return nil, &ImageDecodeError{Path: path, Err: err}
		}
		decoded = append(decoded, d)
	}

	var pages []ComposedPage
	for _, batch := range layout.SplitBatches(decoded, cfg.PerPage()) {
		geo, err := layout.Plan(cfg, batch[0].size)
		if err != nil {
			return nil, err
		}
		page := ComposedPage{Width: geo.PageWidth, Height: geo.PageHeight}
		for i, d := range batch {
			page.Images = append(page.Images, PlacedImage{
				Path: d.path,
				Type: d.imgType,
				Data: d.data,
				Rect: layout.Fit(geo.Cells[i], float64(d.size.X), float64(d.size.Y)),
			})
		}
		pages = append(pages, page)
	}

	Logger.Debug("Composed image pages", "images", len(paths), "pages", len(pages))
	return pages, nil
}

// decode reads the image with its EXIF orientation applied and re-encodes
// it as 8-bit NRGBA, which is the only depth the PDF writer embeds.
func (c *Composer) decode(path string) (decodedImage, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return decodedImage{}, err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return decodedImage{}, fmt.Errorf("image has no pixels")
	}

	format := imaging.PNG
	imgType := "PNG"
	if f, err := imaging.FormatFromFilename(path); err == nil && f == imaging.JPEG {
		format = imaging.JPEG
		imgType = "JPG"
	}

	quality := c.JPEGQuality
	if quality == 0 {
		quality = 95
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Clone(img), format, imaging.JPEGQuality(quality)); err != nil {
		return decodedImage{}, fmt.Errorf("re-encode: %w", err)
	}
	return decodedImage{
		path:    path,
		size:    image.Pt(bounds.Dx(), bounds.Dy()),
		imgType: imgType,
		data:    buf.Bytes(),
	}, nil
}
