package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// Config holds the settings for the OpenAI-backed provider.
type Config struct {
	APIKey         string
	ChatModel      string // e.g. gpt-4o-mini
	EmbeddingModel string // e.g. text-embedding-3-small
	BaseURL        string // empty = api.openai.com; overridable for tests
	Timeout        time.Duration
	BatchSize      int // texts per embeddings request
}

// OpenAIProvider implements port.AIProvider using the OpenAI REST API.
type OpenAIProvider struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	dimension      int
	batchSize      int
	maxRetries     uint64
}

const maxInFlight = 4 // concurrent embeddings requests per batch call

// NewOpenAIProvider creates a new OpenAI-backed AI provider.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is not set", port.ErrConfig)
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	dim := 1536 // text-embedding-3-small
	if cfg.EmbeddingModel == "text-embedding-3-large" {
		dim = 3072
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientCfg),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimension:      dim,
		batchSize:      cfg.BatchSize,
		maxRetries:     3,
	}, nil
}

// ModelName returns the chat model identifier.
func (p *OpenAIProvider) ModelName() string { return p.chatModel }

// Dimension returns the embedding dimensionality for the configured model.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// Embed generates a vector embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. The result preserves
// input order: vector[i] corresponds to texts[i]. Requests are issued in
// sub-batches, at most maxInFlight concurrently.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: cannot embed empty text (input %d)", port.ErrConfig, i)
		}
	}

	vectors := make([][]float32, len(texts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, maxInFlight)

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(start, end int) {
			defer wg.Done()
			defer func() { <-sem }()

			batch, err := p.embedRequest(ctx, texts[start:end])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			copy(vectors[start:], batch)
		}(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// embedRequest performs one embeddings call with bounded retry.
func (p *OpenAIProvider) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	op := func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(p.embeddingModel),
			Input: texts,
		})
		return classify(err)
	}
	if err := backoff.Retry(op, p.newBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai embeddings returned %d vectors for %d inputs",
			port.ErrTransient, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: openai embeddings returned out-of-range index %d",
				port.ErrTransient, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Chat sends a prompt with context chunks and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt, userPrompt string, contextChunks []string) (string, error) {
	fullPrompt := userPrompt
	if len(contextChunks) > 0 {
		var sb strings.Builder
		for i, chunk := range contextChunks {
			fmt.Fprintf(&sb, "\n--- Context chunk %d ---\n%s\n", i+1, chunk)
		}
		fullPrompt = fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), userPrompt)
	}

	req := openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fullPrompt},
		},
	}

	var resp openai.ChatCompletionResponse
	op := func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, req)
		return classify(err)
	}
	if err := backoff.Retry(op, p.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat returned no choices", port.ErrTransient)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
}

// classify maps an OpenAI client error onto the port taxonomy. Rate limits,
// server errors and plain network failures are transient and retried;
// anything else stops the retry loop.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %w", port.ErrTransient, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %w", port.ErrConfig, err))
		default:
			return backoff.Permanent(err)
		}
	}
	// Connection resets, timeouts, DNS failures.
	return fmt.Errorf("%w: %w", port.ErrTransient, err)
}
