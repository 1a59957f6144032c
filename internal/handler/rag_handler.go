package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-pdf-rag/internal/port"
	"github.com/arturoeanton/go-pdf-rag/internal/service"
)

// RAGHandler exposes the retrieval pipeline over HTTP.
type RAGHandler struct {
	ragService *service.RAGService
}

// NewRAGHandler creates a new RAG handler.
func NewRAGHandler(ragService *service.RAGService) *RAGHandler {
	return &RAGHandler{ragService: ragService}
}

// Register sets up the RAG routes.
func (h *RAGHandler) Register(router fiber.Router) {
	router.Post("/index", h.Index)
	router.Post("/chat", h.Chat)
	router.Get("/search", h.Search)
	router.Get("/info", h.Info)
	router.Delete("/documents", h.Remove)
}

// Index ingests a PDF into the collection.
func (h *RAGHandler) Index(c fiber.Ctx) error {
	var body struct {
		Path  string `json:"path"`
		Force bool   `json:"force"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
	}

	report, err := h.ragService.IndexDocument(c.Context(), body.Path, body.Force)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// Chat answers a question grounded on the indexed documents.
func (h *RAGHandler) Chat(c fiber.Ctx) error {
	var body struct {
		Question    string `json:"question"`
		ShowSources *bool  `json:"show_sources"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}
	showSources := body.ShowSources == nil || *body.ShowSources

	answer, err := h.ragService.Chat(c.Context(), body.Question, showSources)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(answer)
}

// Search retrieves similar chunks without generation.
func (h *RAGHandler) Search(c fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}
	k := 0
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "k must be a positive integer"})
		}
		k = n
	}

	results, err := h.ragService.SearchOnly(c.Context(), query, k)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

// Info returns collection diagnostics.
func (h *RAGHandler) Info(c fiber.Ctx) error {
	info, err := h.ragService.CollectionInfo(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(info)
}

// Remove deletes every record indexed from a source path.
func (h *RAGHandler) Remove(c fiber.Ctx) error {
	var body struct {
		Path string `json:"path"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
	}

	removed, err := h.ragService.RemoveDocument(c.Context(), body.Path)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"path": body.Path, "removed": removed})
}

// fail maps the error taxonomy onto HTTP status codes.
func fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, port.ErrConfig), errors.Is(err, port.ErrLoad):
		status = fiber.StatusBadRequest
	case errors.Is(err, port.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, port.ErrTransient):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
