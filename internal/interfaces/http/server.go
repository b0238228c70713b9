// Package http provides the HTTP adapter over the import, check and
// calendar services. It is a thin layer that translates requests to service
// calls and service errors to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/config"
)

// Server is the HTTP server adapter
type Server struct {
	config     config.ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given handlers
func NewServer(cfg config.ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   cfg,
		router:   gin.New(),
		handlers: handlers,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Imports
		api.POST("/imports", s.handlers.ImportFile)
		api.GET("/imports", s.handlers.ListBatches)
		api.GET("/imports/:batchNo", s.handlers.GetBatch)
		api.GET("/imports/:batchNo/records", s.handlers.ListBatchRecords)
		api.DELETE("/imports/:batchNo", s.handlers.RollbackBatch)

		// Checks
		api.POST("/checks/integrity", s.handlers.RunIntegrityCheck)
		api.POST("/checks/compliance", s.handlers.RunComplianceCheck)
		api.GET("/checks", s.handlers.ListChecks)
		api.GET("/checks/:checkNo", s.handlers.GetCheck)

		// Calendar
		api.GET("/holidays", s.handlers.ListHolidays)
		api.POST("/holidays", s.handlers.AddHoliday)
		api.DELETE("/holidays/:id", s.handlers.DeleteHoliday)
		api.POST("/holidays/generate-weekends", s.handlers.GenerateWeekends)
		api.POST("/holidays/sync", s.handlers.SyncHolidays)
		api.GET("/calendar/classify", s.handlers.ClassifyDate)
		api.GET("/calendar/workdays", s.handlers.CalculateWorkdays)

		// System
		api.GET("/config", s.handlers.GetConfig)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
