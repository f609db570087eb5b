// Package httpserver exposes the volunteer-facing action surface over HTTP.
// Token links are the only authentication: holding a valid link is holding
// the capability, so every route here is deliberately unauthenticated.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/services"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

// Server wires the gin engine to the store and notifier
type Server struct {
	store    db.Store
	notifier services.Notifier
	logger   *zap.Logger
	engine   *gin.Engine
	now      func() time.Time
}

// New creates the HTTP server and registers all routes
func New(store db.Store, n services.Notifier, logger *zap.Logger) *Server {
	s := &Server{
		store:    store,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/action/:token", s.handleDescribeAction)
	engine.POST("/action/:token", s.handleExecuteAction)
	engine.GET("/shifts/open", s.handleListOpenShifts)
	engine.POST("/requests", s.handleSubmitRequest)

	s.engine = engine
	return s
}

// Handler returns the http.Handler, used by Run and by httptest in tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
