package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RouteRegistrar registers its routes under a router group, mirroring the
// teacher's handlers.AgencyHandler.RegisterRoutes idiom.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

// Server represents the REST API server.
type Server struct {
	router *gin.Engine
	server *http.Server
	config *ServerConfig
}

// NewServer creates a new API server instance, registering the given
// route groups under the shared "/api" prefix spec.md §6 requires.
func NewServer(config *ServerConfig, registrars ...RouteRegistrar) *Server {
	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(SecurityHeadersMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})

	apiGroup := router.Group("/api")
	for _, r := range registrars {
		r.RegisterRoutes(apiGroup)
	}

	return &Server{
		router: router,
		config: config,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.WithFields(log.Fields{"host": s.config.Host, "port": s.config.Port}).Info("starting api server")
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

// Router returns the underlying Gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
