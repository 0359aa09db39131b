package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/ingestion-service/internal/clients"
	"github.com/tesseract-hub/ingestion-service/internal/config"
	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/events"
	"github.com/tesseract-hub/ingestion-service/internal/handlers"
	natsClient "github.com/tesseract-hub/ingestion-service/internal/nats"
	"github.com/tesseract-hub/ingestion-service/internal/repository"
	"github.com/tesseract-hub/ingestion-service/internal/services"
	jobSubscriber "github.com/tesseract-hub/ingestion-service/internal/subscriber"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.NewConfig()

	// Initialize logger
	logger := logrus.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.Info("Starting Ingestion Service...")

	// Verify the administrative database is reachable before serving
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.HealthCheck(startupCtx, &cfg.Database); err != nil {
		startupCancel()
		logger.WithError(err).Fatal("Failed to connect to administrative database")
	}
	startupCancel()
	logger.Info("Connected to administrative database")

	// Core wiring: router, provisioner, factory, repositories, job engine
	router := database.NewRouter(&cfg.Database, logger.WithField("component", "database.router"))
	provisioner := database.NewProvisioner(&cfg.Database, logger.WithField("component", "database.provisioner"))
	factory := clients.NewFactory(router, logger.WithField("component", "clients.factory"))

	jobRepo := repository.NewJobRepository(router)
	eventRepo := repository.NewEventRepository(router)
	locationRepo := repository.NewLocationRepository(router)
	userRepo := repository.NewUserRepository(router)

	// NATS is optional: without it the engine still serves in-process calls,
	// but event-driven triggering and lifecycle publishing are disabled.
	var nc *natsClient.Client
	if cfg.NATS.URL != "" {
		var err error
		nc, err = natsClient.NewClient(natsClient.DefaultConfig(cfg.NATS.URL), logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, running without event triggers")
			nc = nil
		}
	} else {
		logger.Warn("NATS_URL not set, event triggers disabled")
	}

	publisher := events.NewPublisher(nc, logger)
	jobService := services.NewJobService(
		&cfg.Job, factory,
		jobRepo, eventRepo, locationRepo, userRepo,
		publisher, logger.WithField("component", "services.job"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var subscriber *jobSubscriber.Subscriber
	if nc != nil {
		subscriber = jobSubscriber.NewSubscriber(nc, provisioner, jobService, logger)
		if err := subscriber.Start(ctx); err != nil {
			logger.WithError(err).Warn("Failed to start NATS subscriptions, running without event triggers")
			subscriber = nil
		}
	}

	// HTTP surface: health probes and Prometheus metrics only
	healthHandler := handlers.NewHealthHandler(&cfg.Database, nc)

	if cfg.Server.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     serverAddr,
			"database": cfg.Database.Host + ":" + cfg.Database.Port,
			"nats":     cfg.NATS.URL,
		}).Info("Ingestion service listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if subscriber != nil {
		subscriber.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down server")
	}
	if nc != nil {
		nc.Close()
	}

	logger.Info("Server stopped")
}
