// Package api exposes the HTTP surface: the agent endpoint, the WebSocket
// upgrade, the memory CRUD endpoints, and the operational probes.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/metrics"
	"github.com/tabpilot/tabpilot/pkg/models"
	"github.com/tabpilot/tabpilot/pkg/ws"
)

// AgentRunner is the orchestrator capability the handlers need. Implemented
// by agent.Orchestrator.
type AgentRunner interface {
	Run(ctx context.Context, req models.AgentRequest) (models.ChatResponse, error)
	Stream(ctx context.Context, req models.AgentRequest) (<-chan llm.StreamChunk, error)
	ShouldStream(req models.AgentRequest) bool
}

// MemoryService is the memory-store capability the handlers need.
// Implemented by memory.Store; nil when no database is configured.
type MemoryService interface {
	Add(ctx context.Context, content string) (models.Memory, error)
	Recent(ctx context.Context, limit int) ([]models.Memory, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Server is the HTTP server.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	agent       AgentRunner
	connManager *ws.Manager
	memories    MemoryService
}

// NewServer wires routes and middleware. memories may be nil.
func NewServer(agent AgentRunner, connManager *ws.Manager, memories MemoryService) *Server {
	s := &Server{
		echo:        echo.New(),
		agent:       agent,
		connManager: connManager,
		memories:    memories,
	}

	s.echo.Use(permissiveCORS())

	s.echo.GET("/", s.helloHandler)
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	s.echo.GET("/debug/context", s.debugContextHandler)

	s.echo.POST("/api/chat", s.agentHandler)
	s.echo.POST("/agent/run", s.agentHandler)

	s.echo.GET("/ws", s.wsHandler)

	s.echo.GET("/api/memory", s.listMemoriesHandler)
	s.echo.POST("/api/memory", s.createMemoryHandler)
	s.echo.DELETE("/api/memory/:id", s.deleteMemoryHandler)

	return s
}

// Handler returns the root handler. Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
