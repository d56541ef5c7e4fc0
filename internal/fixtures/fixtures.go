// Package fixtures writes small image and PDF files for tests.
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"github.com/ledongthuc/pdf"
)

// Image writes a w x h gradient image to dir/name. The format follows the
// extension of name.
func Image(tb testing.TB, dir, name string, w, h int) string {
	tb.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.NRGBA{R: uint8(x % 256), G: 120, B: 240, A: 255})
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		tb.Fatalf("Failed to write image fixture %s: %v", path, err)
	}
	return path
}

// Gray writes a single channel PNG.
func Gray(tb testing.TB, dir, name string, w, h int) string {
	tb.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		tb.Fatalf("Failed to write image fixture %s: %v", path, err)
	}
	return path
}

// PDF writes an uncompressed PDF with the given number of A4 pages, each
// carrying its page number as text, and the given title in the Info
// dictionary.
func PDF(tb testing.TB, dir, name string, pages int, title string) string {
	tb.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle(title, false)
	pdf.SetAuthor("fixtures", false)
	pdf.SetSubject("test document", false)
	pdf.SetFont("Helvetica", "", 24)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Text(20, 30, fmt.Sprintf("%s page %d", title, i))
		pdf.Rect(10, 10, float64(20*i), 15, "D")
	}
	path := filepath.Join(dir, name)
	if err := pdf.OutputFileAndClose(path); err != nil {
		tb.Fatalf("Failed to write PDF fixture %s: %v", path, err)
	}
	return path
}

// Text writes a plain file, useful for unsupported or corrupt inputs.
func Text(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatalf("Failed to write fixture %s: %v", path, err)
	}
	return path
}

var (
	drawXObject = regexp.MustCompile(`/([^\s/\[\]()<>]+) Do`)
	showText    = regexp.MustCompile(`\((.*?)\) Tj`)
)

// PageSources reports what each page of the PDF at path draws: the text
// of an embedded page such as "Title page 2", or "image" for a picture.
// Only the first XObject drawn on each page is considered.
func PageSources(tb testing.TB, path string) []string {
	tb.Helper()
	f, r, err := pdf.Open(path)
	if err != nil {
		tb.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	sources := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		m := drawXObject.FindSubmatch(readStream(tb, p.V.Key("Contents")))
		if m == nil {
			tb.Fatalf("Page %d of %s draws no XObject", i, path)
		}
		xobj := p.Resources().Key("XObject").Key(string(m[1]))
		switch xobj.Key("Subtype").Name() {
		case "Image":
			sources = append(sources, "image")
		case "Form":
			text := showText.FindSubmatch(readStream(tb, xobj))
			if text == nil {
				tb.Fatalf("Page %d of %s: form %s shows no text", i, path, m[1])
			}
			sources = append(sources, string(text[1]))
		default:
			tb.Fatalf("Page %d of %s: %s is not an image or form", i, path, m[1])
		}
	}
	return sources
}

func readStream(tb testing.TB, v pdf.Value) []byte {
	tb.Helper()
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		tb.Fatalf("Failed to read stream: %v", err)
	}
	return data
}
