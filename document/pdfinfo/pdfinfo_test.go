package pdfinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drummonds/pdfmerge/internal/fixtures"
)

func TestLedongthucInspector(t *testing.T) {
	dir := t.TempDir()
	path := fixtures.PDF(t, dir, "three.pdf", 3, "Quarterly")

	inspector := NewLedongthucInspector()
	defer inspector.Close()

	info, err := inspector.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.PageCount)
	assert.Equal(t, "Quarterly", info.Title)
	assert.Equal(t, "fixtures", info.Author)
	assert.Equal(t, "test document", info.Subject)
}

func TestLedongthucInspectorRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	path := fixtures.Text(t, dir, "fake.pdf", "this is not a pdf at all")

	_, err := NewLedongthucInspector().Inspect(path)
	assert.Error(t, err)

	_, err = NewLedongthucInspector().Inspect(dir + "/missing.pdf")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	inspector, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &LedongthucInspector{}, inspector)

	inspector, err = New("LEDONGTHUC")
	require.NoError(t, err)
	assert.IsType(t, &LedongthucInspector{}, inspector)

	inspector, err = New(BackendFitz)
	require.NoError(t, err)
	assert.IsType(t, &FitzInspector{}, inspector)

	_, err = New("poppler")
	assert.Error(t, err)
}
