package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/answer"
	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/ingest"
)

// Server is the API server for querying and managing the release QA index.
type Server struct {
	config      Config
	index       *index.Index
	runner      *ingest.Runner
	synthesizer *answer.Synthesizer
	logger      *zap.Logger
	app         *fiber.App

	// baseCtx outlives any single request; background ingestion runs
	// started from a handler are bound to it.
	baseCtx context.Context
}

// NewServer creates a new API server. The index and runner are injected to
// allow sharing with the watcher and CLI.
func NewServer(config Config, ix *index.Index, runner *ingest.Runner, synthesizer *answer.Synthesizer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:      config,
		index:       ix,
		runner:      runner,
		synthesizer: synthesizer,
		logger:      logger,
		app:         app,
		baseCtx:     context.Background(),
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)
	app.Post("/query", s.handleQuery)
	app.Post("/ingest", s.handleIngest)
	app.Get("/debug", s.handleDebug)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for in-process request testing.
func (s *Server) App() *fiber.App {
	return s.app
}
