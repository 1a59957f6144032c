package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arturoeanton/go-pdf-rag/internal/chunker"
	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// systemPrompt conditions the model strictly on the retrieved context.
const systemPrompt = `You are a document assistant. Answer the question using only the provided context.
If the answer is not contained in the context, say explicitly that the indexed documents do not contain it.
Cite the source document and page when referencing content.`

// noContextAnswer is returned when retrieval finds nothing; chat never
// reaches the generative model in that case.
const noContextAnswer = "No relevant context was found in the indexed documents for this question. Index a document first or rephrase the question."

// Options tune the retrieval-augmented chain.
type Options struct {
	SearchK          int // default result count for retrieval
	ContextCharLimit int // prompt context budget, in characters
	EmbedBatchSize   int // chunks embedded and stored per batch
	QueryCacheSize   int // entries in the query-embedding LRU
}

// RAGService orchestrates indexing (load → chunk → embed → store) and
// querying (embed → retrieve → assemble context → generate).
type RAGService struct {
	ai      port.AIProvider
	loader  port.DocumentLoader
	store   port.VectorStore
	chunker *chunker.Chunker
	opts    Options

	queryCache *lru.Cache[string, []float32]
}

// NewRAGService wires the chain from its collaborators.
func NewRAGService(ai port.AIProvider, loader port.DocumentLoader, store port.VectorStore, ch *chunker.Chunker, opts Options) (*RAGService, error) {
	if opts.SearchK <= 0 {
		opts.SearchK = 3
	}
	if opts.ContextCharLimit <= 0 {
		opts.ContextCharLimit = 8000
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.QueryCacheSize <= 0 {
		opts.QueryCacheSize = 128
	}
	cache, err := lru.New[string, []float32](opts.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: query cache: %v", port.ErrConfig, err)
	}
	return &RAGService{ai: ai, loader: loader, store: store, chunker: ch, opts: opts, queryCache: cache}, nil
}

// IndexDocument loads a PDF, splits it into chunks, embeds them and stores
// the records. A document that is already indexed is skipped unless force is
// set, in which case its previous records are removed first (replace by
// source, never silent duplication).
//
// Chunks are embedded and committed batch by batch, so a failure or
// cancellation partway through leaves only whole batches stored; the report
// says how many chunks made it in.
func (s *RAGService) IndexDocument(ctx context.Context, path string, force bool) (domain.IndexReport, error) {
	report := domain.IndexReport{Source: path}

	pages, err := s.loader.Extract(path)
	if err != nil {
		return report, err
	}
	report.Pages = len(pages)

	existing, err := s.store.CountBySource(ctx, path)
	if err != nil {
		return report, err
	}
	if existing > 0 {
		if !force {
			slog.Info("document already indexed, skipping", "path", path, "chunks", existing)
			report.ChunksIndexed = existing
			report.Skipped = true
			return report, nil
		}
		removed, err := s.store.DeleteBySource(ctx, path)
		if err != nil {
			return report, err
		}
		slog.Info("reindexing document", "path", path, "removed", removed)
	}

	chunks := s.chunker.Split(domain.Document{Path: path, Pages: pages})
	if len(chunks) == 0 {
		slog.Info("document has no extractable text", "path", path)
		return report, nil
	}

	if err := s.store.EnsureCollection(ctx); err != nil {
		return report, err
	}

	slog.Info("indexing document", "path", path, "pages", len(pages), "chunks", len(chunks))

	for start := 0; start < len(chunks); start += s.opts.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w: indexing interrupted after %d chunks: %v",
				port.ErrTransient, report.ChunksIndexed, err)
		}

		end := start + s.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.ai.EmbedBatch(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}

		records := make([]domain.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = domain.VectorRecord{
				Source:  c.Source,
				Page:    c.Page,
				Index:   c.Index,
				Content: c.Text,
				Vector:  vectors[i],
			}
		}
		if err := s.store.Add(ctx, records); err != nil {
			return report, fmt.Errorf("store batch at chunk %d: %w", start, err)
		}
		report.ChunksIndexed += len(batch)
	}

	slog.Info("document indexed", "path", path, "chunks", report.ChunksIndexed)
	return report, nil
}

// Chat answers a question grounded on the indexed documents. If retrieval
// returns nothing the answer says so; the generative model is not called.
func (s *RAGService) Chat(ctx context.Context, question string, showSources bool) (domain.Answer, error) {
	results, err := s.SearchOnly(ctx, question, s.opts.SearchK)
	if err != nil {
		return domain.Answer{}, err
	}
	if len(results) == 0 {
		return domain.Answer{Text: noContextAnswer}, nil
	}

	contextParts := s.assembleContext(results)

	text, err := s.ai.Chat(ctx, systemPrompt, question, contextParts)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	answer := domain.Answer{Text: text}
	if showSources {
		answer.Sources = results
	}
	return answer, nil
}

// SearchOnly retrieves the k most similar chunks without generation.
func (s *RAGService) SearchOnly(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", port.ErrConfig)
	}
	if k <= 0 {
		k = s.opts.SearchK
	}

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.SimilaritySearch(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return results, nil
}

// CollectionInfo reports the collection diagnostics.
func (s *RAGService) CollectionInfo(ctx context.Context) (domain.CollectionInfo, error) {
	return s.store.Info(ctx)
}

// RemoveDocument deletes every record indexed from the given source path.
func (s *RAGService) RemoveDocument(ctx context.Context, path string) (int, error) {
	removed, err := s.store.DeleteBySource(ctx, path)
	if err != nil {
		return 0, err
	}
	slog.Info("document removed", "path", path, "chunks", removed)
	return removed, nil
}

// embedQuery embeds a query, serving repeats from the LRU cache.
func (s *RAGService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, ok := s.queryCache.Get(query); ok {
		return v, nil
	}
	v, err := s.ai.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	s.queryCache.Add(query, v)
	return v, nil
}

// assembleContext builds the prompt context from retrieval results in
// similarity order. When the char budget runs out, the lowest-similarity
// chunks are dropped first; only the top chunk may be hard-truncated, so
// the prompt always carries at least some context.
func (s *RAGService) assembleContext(results []domain.RetrievalResult) []string {
	budget := s.opts.ContextCharLimit
	var parts []string
	for i, r := range results {
		part := fmt.Sprintf("[%s | page %d]\n%s", r.Source, r.Page, r.Content)
		runes := []rune(part)
		if len(runes) > budget {
			if i == 0 {
				parts = append(parts, string(runes[:budget]))
			}
			break
		}
		parts = append(parts, part)
		budget -= len(runes)
	}
	return parts
}
