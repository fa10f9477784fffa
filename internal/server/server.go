// Package server exposes the sign-off application over HTTP with gin.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/auth"
	"github.com/paysign/signoff/internal/config"
	"github.com/paysign/signoff/internal/metrics"
)

// Server is the HTTP server
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates the server and mounts all routes
func New(
	cfg config.ServerConfig,
	handlers *Handlers,
	tokens *auth.TokenManager,
	sessions *auth.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogMiddleware(logger))
	router.Use(metricsMiddleware(m))

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	api.POST("/login", handlers.Login)

	authed := api.Group("")
	authed.Use(authMiddleware(tokens, sessions, logger))
	{
		authed.POST("/logout", handlers.Logout)

		authed.GET("/approvals", handlers.ListApprovals)
		authed.GET("/approvals/:id", handlers.GetApproval)
		authed.GET("/approvals/:id/transfer-candidates", handlers.TransferCandidates)
		authed.POST("/approvals/:id/approve", handlers.Approve)
		authed.POST("/approvals/:id/reject", handlers.Reject)
		authed.POST("/approvals/:id/delay", handlers.Delay)
		authed.POST("/approvals/:id/transfer", handlers.Transfer)
		authed.POST("/approvals/:id/milestone", handlers.AssignMilestone)
		authed.POST("/approvals/bulk", handlers.BulkAction)

		authed.POST("/selection/toggle", handlers.ToggleSelect)
		authed.POST("/selection/toggle-all", handlers.ToggleSelectAll)
		authed.POST("/view/mode", handlers.SetViewMode)

		authed.GET("/export", handlers.Export)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		cfg:    cfg,
		router: router,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Router exposes the mounted routes, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown or a listener error
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
