package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountsdb "qr-entry/internal/accounts/db"
	"qr-entry/internal/config"
	"qr-entry/internal/database"
	"qr-entry/internal/kafka"
	"qr-entry/internal/logger"
	"qr-entry/internal/media"
	"qr-entry/internal/metrics"
	"qr-entry/internal/notify"
	ticketsdb "qr-entry/internal/tickets/db"

	"github.com/joho/godotenv"
)

func main() {
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	flag.Parse()

	logger := logger.NewLogger("qr-entry-notifier")
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal("CONFIG", "KAFKA_BROKERS not set")
	}
	if cfg.Email.SMTPHost == "" {
		logger.Fatal("CONFIG", "SMTP_HOST not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	mailer, err := notify.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	m := metrics.New()
	notifier := notify.NewNotifier(
		&ticketsdb.DB{Bun: bunDB},
		&accountsdb.DB{Bun: bunDB},
		media.NewFileStore(cfg.Media.Root),
		mailer,
		logger,
	)
	notifier.Metrics = m

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("HTTP", fmt.Sprintf("metrics on %s", *metricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP", fmt.Sprintf("metrics server: %v", err))
			}
		}()
	}

	if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingCreated, cfg.Kafka.GroupID, logger)
	defer consumer.Close()

	logger.Info("APP", fmt.Sprintf("Ticket notifier consuming %s", cfg.Kafka.Topics.BookingCreated))
	if err := consumer.Start(ctx, notifier.HandleBookingEvent); err != nil {
		logger.Error("KAFKA", err.Error())
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info("APP", "✅ Ticket notifier stopped")
}
