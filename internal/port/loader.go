package port

import "github.com/arturoeanton/go-pdf-rag/internal/domain"

// DocumentLoader extracts the page texts of a source document.
type DocumentLoader interface {
	// Extract reads the file at path and returns its pages in order.
	// Unreadable or corrupt files fail with ErrLoad.
	Extract(path string) ([]domain.Page, error)
}
