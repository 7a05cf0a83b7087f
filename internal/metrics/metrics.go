package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. Each instance owns its registry so
// tests can build fresh ones.
type Metrics struct {
	Registry *prometheus.Registry

	BookingsCreated   prometheus.Counter
	TicketIDConflicts prometheus.Counter
	Checkins          *prometheus.CounterVec
	PaymentsRecorded  *prometheus.CounterVec
	WebhookReplays    prometheus.Counter
	TicketEmails      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "bookings_created_total",
			Help:      "Bookings inserted.",
		}),
		TicketIDConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "ticket_id_conflicts_total",
			Help:      "Ticket id collisions that forced a retry.",
		}),
		Checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "checkins_total",
			Help:      "Ticket scans by outcome.",
		}, []string{"outcome"}),
		PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "payments_recorded_total",
			Help:      "Payment rows appended by gateway and status.",
		}, []string{"gateway", "status"}),
		WebhookReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "webhook_replays_total",
			Help:      "Webhook deliveries acknowledged without processing.",
		}),
		TicketEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "ticket_emails_total",
			Help:      "Ticket emails by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrentry",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qrentry",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.BookingsCreated,
		m.TicketIDConflicts,
		m.Checkins,
		m.PaymentsRecorded,
		m.WebhookReplays,
		m.TicketEmails,
		m.HTTPRequests,
		m.HTTPDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = routeLabel(pattern)
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routeLabel drops the trailing slash so "/x/{id}/" and "/x/{id}" share a series
// whichever form the router reports.
func routeLabel(pattern string) string {
	if len(pattern) > 1 {
		return strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

// The helpers below are safe to call on a nil *Metrics.

func (m *Metrics) BookingCreated() {
	if m != nil {
		m.BookingsCreated.Inc()
	}
}

func (m *Metrics) TicketIDConflict() {
	if m != nil {
		m.TicketIDConflicts.Inc()
	}
}

func (m *Metrics) Checkin(outcome string) {
	if m != nil {
		m.Checkins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PaymentRecorded(gateway, status string) {
	if m != nil {
		m.PaymentsRecorded.WithLabelValues(gateway, status).Inc()
	}
}

func (m *Metrics) WebhookReplay() {
	if m != nil {
		m.WebhookReplays.Inc()
	}
}

func (m *Metrics) TicketEmail(result string) {
	if m != nil {
		m.TicketEmails.WithLabelValues(result).Inc()
	}
}
