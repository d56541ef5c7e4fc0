package document

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/internal/fixtures"
	"github.com/drummonds/pdfmerge/layout"
	"github.com/drummonds/pdfmerge/validator"
)

// pageContents returns the decoded content stream of every page.
func pageContents(t *testing.T, path string) [][]byte {
	t.Helper()
	f, r, err := pdf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var contents [][]byte
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		require.False(t, p.V.IsNull(), "page %d missing", i)
		rc := p.V.Key("Contents").Reader()
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents = append(contents, data)
	}
	return contents
}

func countPages(t *testing.T, path string) int {
	t.Helper()
	info, err := pdfinfo.NewLedongthucInspector().Inspect(path)
	require.NoError(t, err)
	return info.PageCount
}

func TestAssemblerAppendsInCallOrder(t *testing.T) {
	dir := t.TempDir()
	img := fixtures.Image(t, dir, "a.png", 300, 200)
	doc := fixtures.PDF(t, dir, "two.pdf", 2, "Two")
	out := filepath.Join(dir, "out.pdf")

	pages, err := (&Composer{}).Compose([]string{img}, layout.DefaultConfig())
	require.NoError(t, err)

	a := NewAssembler(nil)
	defer a.Release()

	require.NoError(t, a.AppendComposedPages(pages))
	assert.Equal(t, 1, a.PageCount())

	added, err := a.AppendExistingDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, a.PageCount())

	require.NoError(t, a.Save(out))
	assert.Equal(t, 3, countPages(t, out))
}

func TestAssemblerSelfMergeDoublesPages(t *testing.T) {
	dir := t.TempDir()
	src := fixtures.PDF(t, dir, "src.pdf", 3, "Source")
	out := filepath.Join(dir, "double.pdf")

	a := NewAssembler(pdfinfo.NewLedongthucInspector())
	defer a.Release()
	for range 2 {
		added, err := a.AppendExistingDocument(src)
		require.NoError(t, err)
		require.Equal(t, 3, added)
	}
	require.NoError(t, a.Save(out))

	contents := pageContents(t, out)
	require.Len(t, contents, 6)
	for i := 0; i < 3; i++ {
		assert.NotEmpty(t, contents[i])
		assert.Equal(t, contents[i], contents[i+3], "page %d differs from page %d", i+1, i+4)
	}
}

func TestAssemblerRepeatedDocumentDrawsItsOwnPages(t *testing.T) {
	dir := t.TempDir()
	alpha := fixtures.PDF(t, dir, "alpha.pdf", 2, "Alpha")
	beta := fixtures.PDF(t, dir, "beta.pdf", 1, "Beta")
	out := filepath.Join(dir, "out.pdf")

	a := NewAssembler(pdfinfo.NewLedongthucInspector())
	defer a.Release()
	for _, path := range []string{alpha, beta, alpha} {
		_, err := a.AppendExistingDocument(path)
		require.NoError(t, err)
	}
	require.NoError(t, a.Save(out))

	assert.Equal(t, []string{
		"Alpha page 1", "Alpha page 2",
		"Beta page 1",
		"Alpha page 1", "Alpha page 2",
	}, fixtures.PageSources(t, out))
}

func TestAssemblerExistingDocumentErrors(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(nil)
	defer a.Release()

	_, err := a.AppendExistingDocument(filepath.Join(dir, "missing.pdf"))
	var notFound *validator.FileNotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)

	corrupt := fixtures.Text(t, dir, "corrupt.pdf", "%PDF-1.4\nnot really\n")
	_, err = a.AppendExistingDocument(corrupt)
	var openErr *PdfOpenError
	require.True(t, errors.As(err, &openErr), "got %v", err)
	assert.Equal(t, corrupt, openErr.Path)
	assert.Equal(t, 0, a.PageCount())
}

func TestAssemblerSaveEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "empty.pdf")

	a := NewAssembler(nil)
	defer a.Release()

	assert.ErrorIs(t, a.Save(out), ErrEmptyDocument)
	assert.NoFileExists(t, out)
}

func TestAssemblerSaveFailureLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	doc := fixtures.PDF(t, dir, "one.pdf", 1, "One")
	out := filepath.Join(dir, "no-such-dir", "out.pdf")

	a := NewAssembler(nil)
	defer a.Release()
	_, err := a.AppendExistingDocument(doc)
	require.NoError(t, err)

	err = a.Save(out)
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr), "got %v", err)
	assert.Equal(t, out, saveErr.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the source fixture should remain")
}

func TestAssemblerRelease(t *testing.T) {
	dir := t.TempDir()
	doc := fixtures.PDF(t, dir, "one.pdf", 1, "One")

	a := NewAssembler(nil)
	a.Release()
	a.Release()
	assert.True(t, a.Released())

	_, err := a.AppendExistingDocument(doc)
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, a.AppendComposedPages(nil), ErrReleased)
	assert.ErrorIs(t, a.Save(filepath.Join(dir, "out.pdf")), ErrReleased)
}
