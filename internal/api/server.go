package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"tradebot/internal/config"
	"tradebot/internal/metrics"
)

// Server exposes the execution pipeline over HTTP
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
	collector  *metrics.Collector
	startTime  time.Time
}

// NewServer creates the API server. The executor handles every trading
// route; the collector backs /metrics and per-request counters.
func NewServer(cfg config.ServerConfig, executor Executor, collector *metrics.Collector, logger zerolog.Logger) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d", cfg.Port)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("server API key required")
	}

	setConfigDefaults(&cfg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		cfg:       cfg,
		router:    router,
		logger:    logger,
		collector: collector,
		startTime: time.Now(),
	}

	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware(collector))
	if cfg.RateLimit > 0 {
		router.Use(RateLimitMiddleware(cfg.RateLimit, time.Second))
	}

	server.setupRoutes(executor)

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().
		Int("port", s.cfg.Port).
		Msg("Starting API server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying gin engine, exposed for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(executor Executor) {
	// Health and metrics endpoints are unauthenticated
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
			Uptime:  int64(time.Since(s.startTime).Seconds()),
		})
	})

	s.router.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, s.collector.Export())
	})

	handlers := NewHandlers(executor, s.collector)

	v1 := s.router.Group("/api/v1")
	v1.Use(AuthMiddleware(s.cfg.APIKey))
	{
		v1.POST("/orders", handlers.PlaceOrder())
		v1.DELETE("/orders", handlers.CancelOrders())
		v1.POST("/leverage", handlers.SetLeverage())
		v1.POST("/close", handlers.ClosePosition())
		v1.GET("/balance", handlers.GetBalance())
		v1.GET("/price", handlers.GetPrice())
		v1.GET("/position", handlers.GetPosition())
		v1.GET("/orders", handlers.GetOpenOrders())
	}
}

func setConfigDefaults(cfg *config.ServerConfig) {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}
