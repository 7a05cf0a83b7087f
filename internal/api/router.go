package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"qr-entry/internal/accounts/account_api"
	analytics_api "qr-entry/internal/analytics/api"
	"qr-entry/internal/auth"
	"qr-entry/internal/events/events_api"
	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	handlers "qr-entry/internal/payment/handler"
	"qr-entry/internal/sse"
	"qr-entry/internal/tickets/ticket_api"
	"qr-entry/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Accounts  *account_api.Handler
	Events    *events_api.Handler
	Tickets   *ticket_api.Handler
	Analytics *analytics_api.Handler
	Webhooks  *handlers.WebhookHandler
	Stripe    *handlers.StripeHandler
	Checkins  *sse.Handler
}

type Deps struct {
	Auth    *auth.Authenticator
	Metrics *metrics.Metrics
	Logger  *logger.Logger
	Health  map[string]HealthCheck
}

// NewRouter mounts every HTTP endpoint of the service.
func NewRouter(h Handlers, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	r.Get("/healthz", healthz(d.Health))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/events/", http.StatusFound)
	})

	// Public pages and reads.
	r.Get("/events/", h.Events.EventsPage)
	r.Get("/events/{id}/", h.Events.EventPage)
	r.Get("/api/events/", h.Events.ListEvents)
	r.Get("/api/events/{id}/", h.Events.GetEvent)
	r.Get("/api/tickets/count", h.Tickets.GetTotalTicketsCount)

	// Accounts.
	r.Post("/signup/", h.Accounts.Signup)
	r.Post("/login/", h.Accounts.Login)
	r.With(d.Auth.Optional).Post("/logout/", h.Accounts.Logout)

	// Unauthenticated writes that carry their own trust model.
	r.Post("/api/register/", h.Tickets.RegisterGuest)
	r.Post("/api/payment-webhook/", h.Webhooks.PaymentWebhook)
	r.Post("/api/stripe/webhook/", h.Stripe.StripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.With(auth.RequireRole(models.RoleOrganiser)).Post("/api/events/", h.Events.CreateEvent)
		r.Post("/api/events/{id}/", h.Events.UpdateEvent)
		r.Get("/api/organizer/events/", h.Events.ListMyEvents)

		r.Post("/api/book/{event_id}/", h.Tickets.BookEvent)
		r.Get("/api/bookings/", h.Tickets.ListMyBookings)
		r.Get("/api/bookings/{id}/", h.Tickets.GetBooking)
		r.Post("/api/bookings/{id}/cancel/", h.Tickets.CancelBooking)
		r.Get("/api/organizer/bookings/", h.Tickets.ListOrganizerBookings)
		r.Get("/api/qr/{booking_id}/", h.Tickets.DownloadQR)
		r.Get("/api/qr/{booking_id}/upi/", h.Tickets.DownloadPaymentQR)

		r.Post("/api/pay/{event_id}/", h.Tickets.CreatePaymentLink)
		r.Post("/api/payment/success/{booking_id}/", h.Tickets.UploadPaymentScreenshot)
		r.Post("/api/bookings/{id}/payment-intent/", h.Stripe.CreatePaymentIntent)
		r.Get("/api/bookings/{id}/payments/", h.Stripe.ListPayments)
		r.Post("/api/payments/{id}/verify/", h.Stripe.VerifyPayment)

		r.Get("/attend/", h.Tickets.AttendPage)
		r.Post("/api/attend/submit/", h.Tickets.SubmitAttendance)
		r.Post("/api/attend/{ticket_id}/", h.Tickets.MarkAttendance)

		h.Analytics.RegisterRoutes(r)
		r.Get("/api/events/{id}/checkins/stream/", h.Checkins.StreamCheckins)
	})

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.APIResponse{
				Success:   false,
				Message:   "Unhealthy",
				Data:      status,
				Timestamp: time.Now().UTC(),
			})
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "Healthy", status)
	}
}

// requestLogger writes one API line per request once the response is done.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprint(status), time.Since(start).Round(time.Microsecond).String())
		})
	}
}
