package pdfinfo

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumInspector implements PDF inspection using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumInspector struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumInspector starts a single-worker PDFium WebAssembly pool
func NewPDFiumInspector() (*PDFiumInspector, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumInspector{
		pool:     pool,
		instance: instance,
	}, nil
}

// Inspect loads the file into PDFium and queries page count and meta text
func (p *PDFiumInspector) Inspect(path string) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.instance == nil {
		return Info{}, fmt.Errorf("pdfium inspector is closed")
	}

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := p.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return Info{}, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer p.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCountResp, err := p.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return Info{}, fmt.Errorf("unable to get page count: %w", err)
	}

	info := Info{PageCount: pageCountResp.PageCount}
	for tag, dst := range map[string]*string{"Title": &info.Title, "Author": &info.Author, "Subject": &info.Subject} {
		resp, err := p.instance.FPDF_GetMetaText(&requests.FPDF_GetMetaText{
			Document: doc.Document,
			Tag:      tag,
		})
		if err != nil {
			continue
		}
		*dst = resp.Value
	}
	return info, nil
}

// Close shuts down the WebAssembly pool
func (p *PDFiumInspector) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	p.instance = nil
	return nil
}
