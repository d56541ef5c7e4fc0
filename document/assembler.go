package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"

	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/validator"
)

// a4 in points, only used until the first page sets its own size.
var a4 = gofpdf.SizeType{Wd: 595.28, Ht: 841.89}

// Assembler owns one accumulating output PDF. Pages are only ever appended.
// An Assembler is not safe for concurrent use.
type Assembler struct {
	pdf       *gofpdf.Fpdf
	importer  *gofpdi.Importer
	inspector pdfinfo.Inspector
	// templates holds every page imported so far, by source path and page
	// number. The importer numbers templates per source file, so a file is
	// imported once and later appends draw the same templates again.
	templates map[string]map[int]importedPage
	pages     int
	images    int
	released  bool
}

// importedPage is a source page already embedded as a form XObject.
type importedPage struct {
	tpl  int
	w, h float64
}

// NewAssembler creates an empty output document. inspector is used to
// count the pages of appended PDFs; nil selects the pure Go backend.
func NewAssembler(inspector pdfinfo.Inspector) *Assembler {
	if inspector == nil {
		inspector = pdfinfo.NewLedongthucInspector()
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           a4,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("pdfmerge", false)
	return &Assembler{
		pdf:       pdf,
		importer:  gofpdi.NewImporter(),
		inspector: inspector,
		templates: make(map[string]map[int]importedPage),
	}
}

// PageCount is the number of pages appended so far.
func (a *Assembler) PageCount() int {
	return a.pages
}

// AppendComposedPages adds one page per composed page, drawing each image
// into its rectangle.
func (a *Assembler) AppendComposedPages(pages []ComposedPage) error {
	if a.released {
		return ErrReleased
	}
	for _, page := range pages {
		a.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: page.Width, Ht: page.Height})
		for _, img := range page.Images {
			a.images++
			name := fmt.Sprintf("img%d", a.images)
			opts := gofpdf.ImageOptions{ImageType: img.Type}
			a.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
			a.pdf.ImageOptions(name, img.Rect.X, img.Rect.Y, img.Rect.W, img.Rect.H, false, opts, 0, "")
			if a.pdf.Err() {
				return &ImageDecodeError{Path: img.Path, Err: a.pdf.Error()}
			}
		}
		a.pages++
	}
	return nil
}

// AppendExistingDocument appends every page of the PDF at path, each at its
// source MediaBox size, and returns the number of pages added.
func (a *Assembler) AppendExistingDocument(path string) (int, error) {
	if a.released {
		return 0, ErrReleased
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &validator.FileNotFoundError{Path: path, Err: err}
		}
		return 0, &PdfOpenError{Path: path, Err: err}
	}

	info, err := a.inspector.Inspect(path)
	if err != nil {
		return 0, &PdfOpenError{Path: path, Err: err}
	}
	if info.PageCount < 1 {
		return 0, &PdfOpenError{Path: path, Err: errors.New("document has no pages")}
	}
	return a.importPages(path, info.PageCount)
}

// importPages draws each source page from an imported template. The
// importer reports malformed input by panicking.
func (a *Assembler) importPages(path string, count int) (added int, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("PDF import panicked", "path", path, "page", added+1, "panic", r)
			err = &PdfOpenError{Path: path, Err: fmt.Errorf("import failed: %v", r)}
		}
	}()

	for pageNo := 1; pageNo <= count; pageNo++ {
		page, err := a.template(path, pageNo)
		if err != nil {
			return added, err
		}
		a.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: page.w, Ht: page.h})
		a.importer.UseImportedTemplate(a.pdf, page.tpl, 0, 0, page.w, page.h)
		if a.pdf.Err() {
			return added, &PdfOpenError{Path: path, Err: a.pdf.Error()}
		}
		a.pages++
		added++
	}
	Logger.Debug("Imported PDF pages", "path", path, "pages", added)
	return added, nil
}

// template returns the form XObject for one source page, importing it on
// first use.
func (a *Assembler) template(path string, pageNo int) (importedPage, error) {
	if page, ok := a.templates[path][pageNo]; ok {
		return page, nil
	}
	tpl := a.importer.ImportPage(a.pdf, path, pageNo, "/MediaBox")
	w, h, ok := mediaBox(a.importer, pageNo)
	if !ok {
		return importedPage{}, &PdfOpenError{Path: path, Err: fmt.Errorf("page %d has no media box", pageNo)}
	}
	if a.templates[path] == nil {
		a.templates[path] = make(map[int]importedPage)
	}
	page := importedPage{tpl: tpl, w: w, h: h}
	a.templates[path][pageNo] = page
	return page, nil
}

func mediaBox(imp *gofpdi.Importer, pageNo int) (w, h float64, ok bool) {
	dims, ok := imp.GetPageSizes()[pageNo]
	if !ok {
		return 0, 0, false
	}
	box, ok := dims["/MediaBox"]
	if !ok {
		return 0, 0, false
	}
	w, h = box["w"], box["h"]
	return w, h, w > 0 && h > 0
}

// Save writes the document to outputPath. The file is written next to its
// destination under a temporary name and renamed into place, so outputPath
// is either untouched or holds the complete document.
func (a *Assembler) Save(outputPath string) error {
	if a.released {
		return ErrReleased
	}
	if a.pages == 0 {
		return ErrEmptyDocument
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return &SaveError{Path: outputPath, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &SaveError{Path: outputPath, Err: err}
	}

	if err := a.pdf.Output(tmp); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &SaveError{Path: outputPath, Err: err}
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		os.Remove(tmpName)
		return &SaveError{Path: outputPath, Err: err}
	}
	Logger.Info("Saved PDF", "path", outputPath, "pages", a.pages)
	return nil
}

// Release frees the document. It is safe to call more than once.
func (a *Assembler) Release() {
	if a.released {
		return
	}
	a.released = true
	a.pdf = nil
	a.importer = nil
	a.templates = nil
}

// Released reports whether Release has been called.
func (a *Assembler) Released() bool {
	return a.released
}
