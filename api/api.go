package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Server is the API server for capturing and querying mnemo memory.
type Server struct {
	config     Config
	memory     memory.Driver
	classifier *classify.Classifier
	logger     *slog.Logger
	app        *fiber.App
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The memory driver is injected to allow sharing with other components
// (e.g., the file watcher when run from "mnemo serve --watch").
func NewServer(config Config, mem memory.Driver, log *slog.Logger) (*Server, error) {
	if mem == nil {
		return nil, errors.New("memory driver is required")
	}

	cls := config.Classifier
	if cls == nil {
		cls = classify.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:     config,
		memory:     mem,
		classifier: cls,
		logger:     logger.OrNop(log),
		app:        app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/classify", s.handleClassify)
	v1.Post("/evaluate", s.handleEvaluate)

	v1.Post("/capture", s.handleCapture)
	v1.Get("/pending", s.handleListPending)
	v1.Post("/pending/:id", s.handleResolvePending)

	v1.Get("/search", s.handleSearch)
	v1.Post("/search/batch", s.handleBatchSearch)

	v1.Get("/records/:id", s.handleGetRecord)
	v1.Get("/records/:id/quality", s.handleRecordQuality)
	v1.Post("/records/:id/feedback", s.handleRecordFeedback)

	v1.Post("/ranges", s.handleRanges)

	v1.Get("/status", s.handleStatus)
	v1.Post("/projects/:id/end-session", s.handleEndSession)

	v1.Get("/cache/stats", s.handleCacheStats)
	v1.Delete("/cache", s.handleClearCache)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}
