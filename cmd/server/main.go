package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/medsafe-server/internal/api"
	"github.com/medsafe-server/internal/config"
	"github.com/medsafe-server/internal/database"
	"github.com/medsafe-server/internal/domain"
	"github.com/medsafe-server/internal/profile"
	"github.com/medsafe-server/internal/service"
	"github.com/medsafe-server/pkg/external"
)

func main() {
	// Local .env is optional; container deployments set real env vars
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"storage": cfg.Storage.Driver,
	}).Info("Starting medication safety server")

	store, db, err := newProfileStore(context.Background(), configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open profile store")
	}
	defer store.Close()
	if db != nil {
		defer db.Close()
	}

	cache, err := external.NewCorroborationCache(cfg.Cache)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize corroboration cache")
	}

	drugData := external.NewResilientDrugDataClient(
		cfg.ExternalAPI.RxNorm,
		cfg.ExternalAPI.OpenFDA,
		cache,
		logger,
	)
	defer drugData.Close()

	analyzer := service.NewMedicineAnalyzer(logger, drugData, drugData)

	deps := api.Dependencies{
		Analyzer: analyzer,
		Labels:   drugData,
		Profiles: store,
		Health:   drugData,
	}
	if db != nil {
		deps.Database = db
	}
	if cfg.ExternalAPI.OCR.BaseURL != "" {
		deps.Extractor = external.NewOCRClient(cfg.ExternalAPI.OCR)
	} else {
		logger.Warn("OCR base URL not configured; the scan endpoint is disabled")
	}

	server := api.NewServer(cfg, logger, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newProfileStore opens the configured profile store backend. The
// postgres path runs schema migrations first and returns a connection
// pool used as the health probe; the sqlite path returns a nil pool.
func newProfileStore(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (profile.Store, *database.DB, error) {
	cfg := configManager.GetConfig()

	switch cfg.Storage.Driver {
	case "postgres":
		runner, err := database.NewMigrationRunner(
			configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, err
		}
		defer runner.Close()
		if err := runner.Up(); err != nil {
			return nil, nil, err
		}

		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return nil, nil, err
		}

		store, err := profile.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	default:
		store, err := profile.NewSQLiteStore(cfg.Storage.SQLitePath)
		return store, nil, err
	}
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}
