package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	RateLimit       float64 // requests/second per client; <= 0 disables
	Burst           int
	ShutdownTimeout time.Duration
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(svc QueryService, opts Options, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(Metrics())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	queries := router.Group("/queries")
	if opts.RateLimit > 0 {
		queries.Use(NewRateLimiter(opts.RateLimit, opts.Burst).Middleware())
	}

	h := NewQueryHandler(svc)
	queries.POST("", h.Create)
	queries.GET("", h.List)
	queries.GET("/execute", h.Execute)
	queries.POST("/execute/async", h.ExecuteAsync)
	queries.GET("/execute/async/:executionId", h.AsyncStatus)

	return router
}

// Server runs the router on an http.Server.
type Server struct {
	opts   Options
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a Server for svc.
func NewServer(svc QueryService, opts Options, logger *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		opts: opts,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(svc, opts, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting up to ShutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on Options.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}
