package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/canary"
)

// Server is the API server for managing and querying canary deployments.
type Server struct {
	config  Config
	manager *canary.Manager
	specs   *agentspec.Store
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The manager is injected to allow sharing with other components
// (e.g., the expiry sweeper when run in the same process).
// The registry exposes lifecycle counters on /metrics; pass nil to skip.
func NewServer(config Config, manager *canary.Manager, specs *agentspec.Store, registry *prometheus.Registry, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		manager: manager,
		specs:   specs,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)

	app.Get("/agents", s.handleListAgents)
	app.Get("/agents/:name", s.handleGetAgent)
	app.Get("/agents/:name/route", s.handleAgentRoute)
	app.Get("/agents/:name/baseline", s.handleAgentBaseline)

	app.Get("/deployments", s.handleListDeployments)
	app.Post("/deployments", s.handleCreateDeployment)
	app.Get("/deployments/:id", s.handleGetDeployment)
	app.Post("/deployments/:id/evaluate", s.handleEvaluateDeployment)
	app.Post("/deployments/:id/promote", s.handlePromoteDeployment)
	app.Post("/deployments/:id/rollback", s.handleRollbackDeployment)
	app.Put("/deployments/:id/traffic", s.handleSetTrafficSplit)
	app.Post("/deployments/check-expired", s.handleCheckExpired)

	if registry != nil {
		handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		app.Get("/metrics", adaptor.HTTPHandler(handler))
	}

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
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
