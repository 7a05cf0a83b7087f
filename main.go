package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"qr-entry/internal/api"
	"qr-entry/internal/config"
	"qr-entry/internal/database"
	"qr-entry/internal/database/migrations"
	"qr-entry/internal/kafka"
	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	tickets "qr-entry/internal/tickets/service"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.NewLogger("qr-entry")
	defer logger.Close()

	logger.Info("APP", "Starting QrEntry API initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("REDIS", err.Error())
	}
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, logger)
		if err := runner.MigrateUp(); err != nil {
			logger.Fatal("MIGRATION", err.Error())
		}
		runner.Close()
	}

	var publisher tickets.BookingPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", fmt.Sprintf("Publishing booking events to %v", cfg.Kafka.Brokers))
	} else {
		logger.Warn("KAFKA", "Kafka disabled, booking events are dropped")
	}

	app, err := api.Build(api.Stack{
		Config:    cfg,
		DB:        bunDB,
		Redis:     redisClient,
		Publisher: publisher,
		Metrics:   metrics.New(),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("APP", err.Error())
	}

	if cfg.Admin.ProvisionOnStartup {
		created, err := app.Accounts.ProvisionAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			logger.Fatal("ADMIN", err.Error())
		}
		if created {
			logger.Info("ADMIN", fmt.Sprintf("Provisioned admin account %q", cfg.Admin.Username))
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 QrEntry API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ QrEntry API shutdown complete")
	}
}
