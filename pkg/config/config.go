package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/arturoeanton/go-pdf-rag/internal/port"
)

// Config holds all application configuration loaded from environment
// variables. It is read-only after Load and passed by reference into each
// component constructor.
type Config struct {
	// Server
	Port    string
	AppName string

	// OpenAI
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string

	// PostgreSQL
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Vector store
	CollectionName string
	Metric         string // "cosine" or "inner_product", fixed per collection

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	SearchK          int
	ContextCharLimit int

	// Remote calls
	EmbedBatchSize int
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where a variable is unset.
func Load() *Config {
	return &Config{
		Port:    envOrDefault("PORT", "3001"),
		AppName: envOrDefault("APP_NAME", "PDF RAG"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		ChatModel:      envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel: envOrDefault("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),

		PostgresHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     envOrDefault("POSTGRES_PORT", "5432"),
		PostgresDB:       envOrDefault("POSTGRES_DB", "rag_database"),
		PostgresUser:     envOrDefault("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),

		CollectionName: envOrDefault("COLLECTION_NAME", "docs_pdf"),
		Metric:         envOrDefault("DISTANCE_METRIC", "cosine"),

		ChunkSize:    envOrDefaultInt("CHUNK_SIZE", 500),
		ChunkOverlap: envOrDefaultInt("CHUNK_OVERLAP", 50),

		SearchK:          envOrDefaultInt("SEARCH_K", 3),
		ContextCharLimit: envOrDefaultInt("CONTEXT_CHAR_LIMIT", 8000),

		EmbedBatchSize: envOrDefaultInt("EMBED_BATCH_SIZE", 32),
		RequestTimeout: time.Duration(envOrDefaultInt("REQUEST_TIMEOUT_SECS", 30)) * time.Second,
	}
}

// Validate checks that every required setting is present and coherent.
// It runs before any network or database I/O is attempted.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", port.ErrConfig)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: POSTGRES_PASSWORD is not set", port.ErrConfig)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive, got %d", port.ErrConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be non-negative and smaller than CHUNK_SIZE (%d)",
			port.ErrConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.SearchK <= 0 {
		return fmt.Errorf("%w: SEARCH_K must be positive, got %d", port.ErrConfig, c.SearchK)
	}
	switch c.Metric {
	case "cosine", "inner_product":
	default:
		return fmt.Errorf("%w: DISTANCE_METRIC must be cosine or inner_product, got %q", port.ErrConfig, c.Metric)
	}
	return nil
}

// DatabaseURL returns the Postgres connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// DSN returns a connection string safe for logging (password masked).
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s", c.PostgresUser, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
