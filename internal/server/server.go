// Package server provides the HTTP boundary around the reconciliation
// engine: request decoding, API key enforcement, and batch size limits.
// The engine itself stays a pure in-memory function; every policy that
// can reject a request lives here.
package server

import (
	"fmt"
	"net/http"

	"ar-reconciliation-engine/internal/engine"
	"ar-reconciliation-engine/internal/models"
	"ar-reconciliation-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Config holds the HTTP boundary configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string `json:"addr"`

	// APIKey is the shared credential expected in the X-API-Key header.
	// An empty key is a deployment error surfaced as HTTP 500, never an
	// open door.
	APIKey string `json:"-"`

	// MaxBatchSize caps the number of payments and the number of open
	// items per request.
	MaxBatchSize int `json:"max_batch_size"`
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8000",
		MaxBatchSize: 1000,
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive: %d", c.MaxBatchSize)
	}

	return nil
}

// Server wires the engine behind HTTP handlers.
type Server struct {
	config *Config
	engine *engine.Engine
	log    logger.Logger
}

// New creates a server for the given engine.
func New(config *Config, eng *engine.Engine, log logger.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Server{
		config: config,
		engine: eng,
		log:    log.WithComponent("server"),
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	authed := router.Group("/", apiKeyAuth(s.config.APIKey))
	authed.POST("/reconcile", s.handleReconcile)

	return router
}

// Run starts the HTTP listener and blocks until it fails.
func (s *Server) Run() error {
	s.log.WithField("addr", s.config.Addr).Info("starting reconciliation API")
	return s.Router().Run(s.config.Addr)
}

// apiKeyAuth enforces the shared X-API-Key credential.
func apiKeyAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"detail": "API_KEY not configured on server"})
			return
		}

		if c.GetHeader("X-API-Key") != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"detail": "Invalid or missing API Key"})
			return
		}

		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ar-matching-api",
		"version": Version,
	})
}

func (s *Server) handleReconcile(c *gin.Context) {
	var request models.ReconciliationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.log.WithError(err).Warn("rejected malformed reconcile request")
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if len(request.Payments) > s.config.MaxBatchSize || len(request.OpenItems) > s.config.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("Max %d payments and %d open items", s.config.MaxBatchSize, s.config.MaxBatchSize),
		})
		return
	}

	if err := request.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	response, err := s.engine.Reconcile(&request)
	if err != nil {
		s.log.WithError(err).Error("reconciliation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "reconciliation failed"})
		return
	}

	s.log.WithFields(logger.Fields{
		"payments": len(request.Payments),
		"invoices": len(request.OpenItems),
		"high":     len(response.HighConfidence),
		"hitl":     len(response.HitlReview),
		"no_match": len(response.NoMatch),
	}).Info("reconcile request served")

	c.JSON(http.StatusOK, response)
}
