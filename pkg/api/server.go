// Package api exposes the HTTP surface of the service: session lifecycle,
// turn submission, workspace rule management, and health probes. Handlers
// translate domain errors into the JSON error envelope; all business logic
// lives in the service packages.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/config"
	"github.com/codial-dev/codial-core/pkg/queue"
	"github.com/codial-dev/codial-core/pkg/rules"
	"github.com/codial-dev/codial-core/pkg/session"
	"github.com/codial-dev/codial-core/pkg/turns"
)

// Server is the HTTP server wiring together routes, middleware, and the
// underlying services.
type Server struct {
	settings *config.Settings
	sessions *session.Service
	turns    *turns.Service
	rules    *rules.Store
	pool     *queue.TurnWorkerPool

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(settings *config.Settings, sessions *session.Service, turnService *turns.Service, ruleStore *rules.Store, pool *queue.TurnWorkerPool) *Server {
	e := echo.New()

	s := &Server{
		settings: settings,
		sessions: sessions,
		turns:    turnService,
		rules:    ruleStore,
		pool:     pool,
		echo:     e,
		httpServer: &http.Server{
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	s.registerRoutes()
	return s
}

// registerRoutes wires up all endpoints. Health probes are unauthenticated;
// everything under /v1 requires the bearer token.
func (s *Server) registerRoutes() {
	s.echo.Use(securityHeaders())

	s.echo.GET("/health/live", s.livenessHandler)
	s.echo.GET("/health/ready", s.readinessHandler)

	v1 := s.echo.Group("/v1", s.bearerAuth())

	v1.POST("/sessions", s.createSessionHandler)
	v1.POST("/sessions/:id/bind-channel", s.bindChannelHandler)
	v1.POST("/sessions/:id/end", s.endSessionHandler)
	v1.POST("/sessions/:id/provider", s.setProviderHandler)
	v1.POST("/sessions/:id/model", s.setModelHandler)
	v1.POST("/sessions/:id/mcp", s.setMcpHandler)
	v1.POST("/sessions/:id/subagent", s.setSubagentHandler)
	v1.POST("/sessions/:id/turns", s.submitTurnHandler)

	v1.GET("/codial/rules", s.listRulesHandler)
	v1.POST("/codial/rules", s.addRuleHandler)
	v1.DELETE("/codial/rules", s.removeRuleHandler)
}

// Start begins serving on the given address. It blocks until the server
// stops; a clean Shutdown surfaces as http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
