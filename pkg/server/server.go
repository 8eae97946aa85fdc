package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundprediction/chronograph"
	"github.com/soundprediction/chronograph/pkg/config"
	"github.com/soundprediction/chronograph/pkg/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	engine *chronograph.Engine
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, engine *chronograph.Engine) *Server {
	return &Server{
		config: cfg,
		engine: engine,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	// Set gin mode
	gin.SetMode(s.config.Server.Mode)

	// Create router
	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(requestIDMiddleware())

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.engine)
	graphHandler := handlers.NewGraphHandler(s.engine)
	temporalHandler := handlers.NewTemporalHandler(s.engine)
	analyticsHandler := handlers.NewAnalyticsHandler(s.engine)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck) // Kubernetes liveness probe
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		tenant := v1.Group("/tenants/:tenant_id")
		{
			tenant.POST("/transform", graphHandler.Transform)
			tenant.GET("/graph", graphHandler.GetGraph)
			tenant.GET("/graph/at", temporalHandler.GraphAt)

			tenant.POST("/snapshots", temporalHandler.CreateSnapshot)
			tenant.GET("/snapshots", temporalHandler.ListSnapshots)
			tenant.POST("/cleanup", temporalHandler.Cleanup)

			tenant.GET("/changes", temporalHandler.ListChanges)
			tenant.GET("/entities/:entity_id/history", temporalHandler.EntityHistory)

			analytics := tenant.Group("/analytics")
			{
				analytics.GET("/diff", analyticsHandler.Diff)
				analytics.GET("/timeline", analyticsHandler.Timeline)
				analytics.GET("/growth", analyticsHandler.Growth)
				analytics.GET("/patterns", analyticsHandler.Patterns)
				analytics.GET("/convergence", graphHandler.Convergence)
			}
		}
	}
}

// Router returns the underlying gin router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestIDMiddleware tags every request with an id, honoring one supplied by
// the client.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
