package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// PDFLoader extracts page texts from PDF files.
type PDFLoader struct{}

// NewPDFLoader creates a PDF document loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Extract reads the PDF at path and returns its pages in order, 1-based.
// Pages that carry no extractable text are kept as empty entries so page
// numbers stay aligned with the source document.
func (l *PDFLoader) Extract(path string) ([]domain.Page, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a PDF file", port.ErrLoad, path)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found: %s", port.ErrLoad, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", port.ErrLoad, path, err)
	}
	defer f.Close()

	pages := make([]domain.Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extract page %d of %s: %v", port.ErrLoad, i, path, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
