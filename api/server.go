// Package api exposes the voting service as a JSON HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"sealed-ballot/service"
)

type APIConfig struct {
	APIEndpoint string
	EnableAudit bool
}

type Server struct {
	votingService *service.VotingService
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
	cfg           APIConfig
	engine        *gin.Engine
}

func NewServer(votingService *service.VotingService, gatherer prometheus.Gatherer, logger *zap.Logger, cfg APIConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		votingService: votingService,
		gatherer:      gatherer,
		logger:        logger,
		cfg:           cfg,
		engine:        gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(s.engine)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on the configured endpoint until ctx is cancelled, then shuts
// the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.APIEndpoint,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.cfg.APIEndpoint))
		serverChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
