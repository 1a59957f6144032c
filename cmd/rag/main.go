package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-pdf-rag/internal/adapter/ai"
	"github.com/arturoeanton/go-pdf-rag/internal/adapter/loader"
	"github.com/arturoeanton/go-pdf-rag/internal/adapter/store"
	"github.com/arturoeanton/go-pdf-rag/internal/chunker"
	"github.com/arturoeanton/go-pdf-rag/internal/domain"
	"github.com/arturoeanton/go-pdf-rag/internal/service"
	"github.com/arturoeanton/go-pdf-rag/pkg/config"

	_ "github.com/lib/pq"
)

const usage = `Usage:
  rag index <file.pdf> [--force]    index a PDF
  rag chat <question> [--no-sources]  ask a question over the indexed documents
  rag search <query> [-k N]         retrieve similar chunks without generation
  rag info                          show collection diagnostics
  rag remove <file.pdf>             remove an indexed document
`

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}
	command, args := args[0], args[1:]

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration, check your .env", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return 1
	}
	defer cleanup()

	switch command {
	case "index":
		fs := flag.NewFlagSet("index", flag.ExitOnError)
		force := fs.Bool("force", false, "reindex even if the document is already indexed")
		path, ok := parseArgs(fs, args)
		if !ok {
			fmt.Fprint(os.Stderr, usage)
			return 1
		}
		report, err := svc.IndexDocument(ctx, path, *force)
		if err != nil {
			slog.Error("indexing failed", "path", path, "indexed", report.ChunksIndexed, "error", err)
			return 1
		}
		if report.Skipped {
			fmt.Printf("Already indexed: %s (%d chunks). Use --force to reindex.\n", path, report.ChunksIndexed)
			return 0
		}
		fmt.Printf("Indexed %s: %d pages, %d chunks\n", path, report.Pages, report.ChunksIndexed)

	case "chat":
		fs := flag.NewFlagSet("chat", flag.ExitOnError)
		noSources := fs.Bool("no-sources", false, "do not print the sources used")
		question, ok := parseArgs(fs, args)
		if !ok {
			fmt.Fprint(os.Stderr, usage)
			return 1
		}
		answer, err := svc.Chat(ctx, question, !*noSources)
		if err != nil {
			slog.Error("chat failed", "error", err)
			return 1
		}
		fmt.Println(answer.Text)
		printSources(answer.Sources)

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		k := fs.Int("k", 0, "number of results (default SEARCH_K)")
		query, ok := parseArgs(fs, args)
		if !ok {
			fmt.Fprint(os.Stderr, usage)
			return 1
		}
		results, err := svc.SearchOnly(ctx, query, *k)
		if err != nil {
			slog.Error("search failed", "error", err)
			return 1
		}
		if len(results) == 0 {
			fmt.Println("No matching chunks found.")
			return 0
		}
		printSources(results)

	case "info":
		info, err := svc.CollectionInfo(ctx)
		if err != nil {
			slog.Error("info failed", "error", err)
			return 1
		}
		fmt.Printf("Collection: %s\nMetric:     %s\nDimension:  %d\nRecords:    %d\n",
			info.Name, info.Metric, info.Dimension, info.RecordCount)

	case "remove":
		if len(args) != 1 {
			fmt.Fprint(os.Stderr, usage)
			return 1
		}
		removed, err := svc.RemoveDocument(ctx, args[0])
		if err != nil {
			slog.Error("remove failed", "error", err)
			return 1
		}
		fmt.Printf("Removed %d chunks of %s\n", removed, args[0])

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", command, usage)
		return 1
	}
	return 0
}

// parseArgs parses flags that may come before or after the single positional
// argument and returns that argument.
func parseArgs(fs *flag.FlagSet, args []string) (string, bool) {
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return "", false
	}
	// Flags written after the positional argument.
	if len(rest) > 1 {
		if err := fs.Parse(rest[1:]); err != nil {
			return "", false
		}
	}
	return rest[0], true
}

func printSources(sources []domain.RetrievalResult) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, src := range sources {
		preview := src.Content
		if r := []rune(preview); len(r) > 200 {
			preview = string(r[:200]) + "..."
		}
		fmt.Printf("%d. %s | page %d | similarity %.3f\n   %s\n", i+1, src.Source, src.Page, src.Similarity, preview)
	}
}

func buildService(ctx context.Context, cfg *config.Config) (*service.RAGService, func(), error) {
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = pgStore.Close() }

	if err := pgStore.EnsureSchema(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	openAI, err := ai.NewOpenAIProvider(ai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.RequestTimeout,
		BatchSize:      cfg.EmbedBatchSize,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	vectorStore, err := store.NewVectorStore(pgStore, cfg.CollectionName, openAI.Dimension(), cfg.Metric)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := service.NewRAGService(openAI, loader.NewPDFLoader(), vectorStore, ch, service.Options{
		SearchK:          cfg.SearchK,
		ContextCharLimit: cfg.ContextCharLimit,
		EmbedBatchSize:   cfg.EmbedBatchSize,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
