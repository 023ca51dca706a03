package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/ryanlack616/howell-brain/pkg/brain"
)

// Server is the API server over one Brain.
type Server struct {
	config Config
	brain  *brain.Brain
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, b *brain.Brain, logger *slog.Logger) (*Server, error) {
	if b == nil {
		return nil, errors.New("brain is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		brain:  b,
		logger: logger.With("component", "api"),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/bootstrap", s.handleBootstrap)
	app.Get("/status", s.handleStatus)
	app.Get("/tiers/:tier", s.handleReadTier)
	app.Get("/search", s.handleSearch)
	app.Get("/entities/:name", s.handleGetEntity)
	app.Get("/relations", s.handleListRelations)
	app.Post("/entities", s.handleAddEntity)
	app.Post("/observations", s.handleAddObservation)
	app.Post("/relations", s.handleAddRelation)
	app.Delete("/relations", s.handleRemoveRelation)
	app.Post("/sessions", s.handleRecordSession)
	app.Post("/pins", s.handlePin)
	app.Post("/snapshot", s.handleSnapshot)
	app.Post("/reload", s.handleReload)

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
