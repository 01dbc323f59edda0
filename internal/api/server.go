// Package api exposes the medication safety engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medsafe-server/internal/domain"
	"github.com/medsafe-server/internal/middleware"
	"github.com/medsafe-server/internal/profile"
	"github.com/medsafe-server/internal/service"
	"github.com/medsafe-server/pkg/external"
)

// DrugLabelSource supplies openFDA product labels for the label detail
// endpoint.
type DrugLabelSource interface {
	GetDrugLabel(ctx context.Context, drugName string) (*external.DrugLabel, error)
}

// HealthReporter exposes circuit breaker states for the health endpoint.
type HealthReporter interface {
	BreakerStates() map[string]string
}

// DatabaseHealth probes backing database connectivity for the health
// endpoint.
type DatabaseHealth interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	cfg       *domain.Config
	logger    *logrus.Logger
	analyzer  *service.MedicineAnalyzer
	extractor domain.PrescriptionExtractor
	labels    DrugLabelSource
	profiles  profile.Store
	health    HealthReporter
	database  DatabaseHealth
	router    *gin.Engine
	server    *http.Server
}

// Dependencies collects the server's collaborators. Extractor, labels,
// health, and database may be nil; the matching endpoints degrade.
type Dependencies struct {
	Analyzer  *service.MedicineAnalyzer
	Extractor domain.PrescriptionExtractor
	Labels    DrugLabelSource
	Profiles  profile.Store
	Health    HealthReporter
	Database  DatabaseHealth
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, logger *logrus.Logger, deps Dependencies) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger())
	router.Use(corsMiddleware())

	server := &Server{
		cfg:       cfg,
		logger:    logger,
		analyzer:  deps.Analyzer,
		extractor: deps.Extractor,
		labels:    deps.Labels,
		profiles:  deps.Profiles,
		health:    deps.Health,
		database:  deps.Database,
		router:    router,
	}

	server.setupRoutes()

	return server
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/medicines/search", s.handleMedicineSearch)
		v1.GET("/medicines/:name/label", s.handleDrugLabel)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/scan", s.handleScan)

		v1.GET("/profiles", s.handleListProfiles)
		v1.GET("/profiles/export", s.handleExportProfiles)
		v1.POST("/profiles/import", s.handleImportProfiles)
		v1.GET("/profiles/:user_id", s.handleGetProfile)
		v1.PUT("/profiles/:user_id", s.handleSaveProfile)
		v1.DELETE("/profiles/:user_id", s.handleDeleteProfile)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
