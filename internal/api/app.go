package api

import (
	"context"
	"fmt"
	"net/http"

	accountsdb "qr-entry/internal/accounts/db"
	"qr-entry/internal/accounts/account_api"
	accounts "qr-entry/internal/accounts/service"
	"qr-entry/internal/analytics"
	analytics_api "qr-entry/internal/analytics/api"
	"qr-entry/internal/auth"
	"qr-entry/internal/config"
	eventsdb "qr-entry/internal/events/db"
	"qr-entry/internal/events/events_api"
	events "qr-entry/internal/events/service"
	"qr-entry/internal/logger"
	"qr-entry/internal/media"
	"qr-entry/internal/metrics"
	handlers "qr-entry/internal/payment/handler"
	"qr-entry/internal/payment/idempotency"
	"qr-entry/internal/payment/services"
	"qr-entry/internal/payment/storage"
	"qr-entry/internal/sse"
	ticketsdb "qr-entry/internal/tickets/db"
	qr "qr-entry/internal/tickets/qr_genrator"
	tickets "qr-entry/internal/tickets/service"
	"qr-entry/internal/tickets/ticket_api"
	"qr-entry/internal/web"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"
)

// Stack is the set of connected dependencies the API is built on.
type Stack struct {
	Config    *config.Config
	DB        *bun.DB
	Redis     *redis.Client
	Publisher tickets.BookingPublisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// App exposes the router together with the services main needs directly.
type App struct {
	Router   http.Handler
	Accounts *accounts.AccountService
	Tickets  *tickets.TicketService
	Checkins *sse.CheckinEventEmitter
}

// Build wires repositories, services and handlers over s.
func Build(s Stack) (*App, error) {
	cfg, log := s.Config, s.Logger

	pages, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	accountStore := &accountsdb.DB{Bun: s.DB}
	eventStore := &eventsdb.DB{Bun: s.DB}
	ticketStore := &ticketsdb.DB{Bun: s.DB}
	files := media.NewFileStore(cfg.Media.Root)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessions := auth.NewRedisSessionStore(s.Redis)
	authn := auth.NewAuthenticator(tokens, sessions, cfg.Auth.CookieName, log)

	accountService := accounts.NewAccountService(accountStore, tokens, sessions, log)
	eventService := events.NewEventService(eventStore, log)
	emitter := sse.NewCheckinEventEmitter()

	ticketService := tickets.NewTicketService(ticketStore, eventStore, qr.NewQRGenerator(files), files, log)
	ticketService.Publisher = s.Publisher
	ticketService.Feed = emitter
	ticketService.Guests = accountService
	ticketService.Topics = cfg.Kafka.Topics
	ticketService.Metrics = s.Metrics
	ticketService.MaxUploadBytes = cfg.Media.MaxUploadBytes

	var intents services.IntentCreator
	if cfg.Payment.StripeSecretKey != "" {
		if intents, err = services.NewStripeIntents(cfg.Payment.StripeSecretKey, log); err != nil {
			return nil, err
		}
	} else {
		log.Warn("STRIPE", "STRIPE_SECRET_KEY not set, card payments disabled")
	}
	paymentService := services.NewPaymentService(storage.NewPostgreSQLStore(s.DB, log), ticketStore, intents, cfg.Payment.StripeCurrency, log)
	paymentService.Metrics = s.Metrics

	replays := idempotency.NewReplayGuard(s.Redis, cfg.Payment.WebhookReplayTTL)
	if cfg.Payment.WebhookSecret == "" {
		log.Warn("WEBHOOK", "PAYMENT_WEBHOOK_SECRET not set, payment webhook signatures are not checked")
	}
	webhooks := handlers.NewWebhookHandler(ticketService, replays, cfg.Payment.WebhookSecret, log)
	webhooks.Metrics = s.Metrics
	stripeHandler := handlers.NewStripeHandler(paymentService, ticketService, replays, cfg.Payment.StripeWebhookSecret, log)
	stripeHandler.Metrics = s.Metrics

	accountHandler := account_api.NewHandler(accountService, cfg.Auth.CookieName, log)

	health := map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return s.DB.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() },
	}

	router := NewRouter(Handlers{
		Accounts:  accountHandler,
		Events:    events_api.NewHandler(eventService, ticketStore, pages, log),
		Tickets:   ticket_api.NewHandler(ticketService, pages, cfg.Media.MaxUploadBytes, log),
		Analytics: analytics_api.NewHandler(analytics.NewService(analytics.NewDB(s.DB), eventStore, log), log),
		Webhooks:  webhooks,
		Stripe:    stripeHandler,
		Checkins:  sse.NewHandler(emitter, eventStore, log),
	}, Deps{
		Auth:    authn,
		Metrics: s.Metrics,
		Logger:  log,
		Health:  health,
	})

	return &App{
		Router:   router,
		Accounts: accountService,
		Tickets:  ticketService,
		Checkins: emitter,
	}, nil
}
