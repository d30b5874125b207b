package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aosanya/waterguard/internal/analysis"
	"github.com/aosanya/waterguard/internal/api"
	"github.com/aosanya/waterguard/internal/config"
	"github.com/aosanya/waterguard/internal/database"
	"github.com/aosanya/waterguard/internal/detection"
	"github.com/aosanya/waterguard/internal/handlers"
	"github.com/aosanya/waterguard/internal/localization"
	"github.com/aosanya/waterguard/internal/network"
	netdb "github.com/aosanya/waterguard/internal/network/arangodb"
	"github.com/aosanya/waterguard/internal/sensitivity"
	"github.com/aosanya/waterguard/internal/simulator"
	"github.com/aosanya/waterguard/internal/topology"
)

// App wires the leak-detection domain services and the HTTP server that
// exposes them, mirroring the teacher's App composition in shape (a single
// struct assembled in New, run via Run).
type App struct {
	config   *config.Config
	logger   *logrus.Logger
	dbClient *database.ArangoClient
	server   *api.Server
}

// New creates a new application instance, connecting to ArangoDB and
// wiring every domain service the routes in internal/handlers need.
func New(cfg *config.Config) *App {
	logger := logrus.New()

	dbClient, err := database.NewArangoClient(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to ArangoDB")
	}
	if err := dbClient.Ping(); err != nil {
		logger.WithError(err).Warn("database ping failed, continuing with limited functionality")
	}

	repo := netdb.NewRepository(dbClient.Database())
	topo := topology.NewService(repo)
	netSvc := network.NewService(repo, cfg.Network.StorageDir)
	sim := simulator.NewSteadyStateEngine()
	matrix := sensitivity.NewEngine(repo, sim)
	detector := detection.NewDetector(repo, topo)
	localizer := localization.NewLocalizer(repo, topo)
	orchestrator := analysis.NewOrchestrator(repo, detector, localizer)

	networkHandler := handlers.NewNetworkHandler(netSvc, matrix, detector, localizer, orchestrator, repo, logger)

	server := api.NewServer(&api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		Environment:  cfg.LogLevel,
	}, networkHandler)

	return &App{
		config:   cfg,
		logger:   logger,
		dbClient: dbClient,
		server:   server,
	}
}

// Run starts the HTTP server and blocks until an interrupt signal arrives,
// then shuts everything down gracefully.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.server.Start(); err != nil && err.Error() != "http: Server closed" {
			a.logger.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("shutting down")

	if err := a.dbClient.Close(); err != nil {
		a.logger.WithError(err).Error("database close error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("server forced to shutdown")
		return err
	}

	a.logger.Info("server exited")
	return nil
}
