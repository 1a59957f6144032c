package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-pdf-rag/internal/adapter/ai"
	"github.com/arturoeanton/go-pdf-rag/internal/adapter/loader"
	"github.com/arturoeanton/go-pdf-rag/internal/adapter/store"
	"github.com/arturoeanton/go-pdf-rag/internal/chunker"
	"github.com/arturoeanton/go-pdf-rag/internal/handler"
	"github.com/arturoeanton/go-pdf-rag/internal/service"
	"github.com/arturoeanton/go-pdf-rag/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting PDF RAG server",
		"port", cfg.Port,
		"database", cfg.DSN(),
		"collection", cfg.CollectionName,
		"embedding_model", cfg.EmbeddingModel,
		"chat_model", cfg.ChatModel,
	)

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pgStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	openAI, err := ai.NewOpenAIProvider(ai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.RequestTimeout,
		BatchSize:      cfg.EmbedBatchSize,
	})
	if err != nil {
		slog.Error("failed to create AI provider", "error", err)
		os.Exit(1)
	}

	vectorStore, err := store.NewVectorStore(pgStore, cfg.CollectionName, openAI.Dimension(), cfg.Metric)
	if err != nil {
		slog.Error("failed to create vector store", "error", err)
		os.Exit(1)
	}
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		slog.Error("failed to ensure collection", "error", err)
		os.Exit(1)
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("invalid chunking configuration", "error", err)
		os.Exit(1)
	}

	ragService, err := service.NewRAGService(openAI, loader.NewPDFLoader(), vectorStore, ch, service.Options{
		SearchK:          cfg.SearchK,
		ContextCharLimit: cfg.ContextCharLimit,
		EmbedBatchSize:   cfg.EmbedBatchSize,
	})
	if err != nil {
		slog.Error("failed to create RAG service", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"app":    cfg.AppName,
		})
	})

	api := app.Group("/api/v1")
	ragHandler := handler.NewRAGHandler(ragService)
	ragHandler.Register(api)

	slog.Info("listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
