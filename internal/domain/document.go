package domain

// Page is the text extracted from a single PDF page, in document order.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is a source PDF identified by its path. It is read once during
// indexing and never persisted itself; only its chunks are.
type Document struct {
	Path  string `json:"path"`
	Pages []Page `json:"-"`
}

// PageCount returns the number of extracted pages.
func (d Document) PageCount() int {
	return len(d.Pages)
}

// Chunk is a contiguous span of extracted text, the unit of embedding and
// retrieval. Consecutive chunks from the same page overlap by the configured
// number of characters.
type Chunk struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	Index  int    `json:"chunk_index"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}
