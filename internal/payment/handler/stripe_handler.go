package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	"qr-entry/internal/payment/idempotency"
	"qr-entry/internal/payment/services"
	tickets "qr-entry/internal/tickets/service"
	"qr-entry/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeHandler struct {
	paymentService *services.PaymentService
	payments       PaymentConfirmer
	replays        ReplayGuard
	webhookSecret  string
	Metrics        *metrics.Metrics
	logger         *logger.Logger
}

func NewStripeHandler(paymentService *services.PaymentService, payments PaymentConfirmer, replays ReplayGuard, webhookSecret string, log *logger.Logger) *StripeHandler {
	return &StripeHandler{
		paymentService: paymentService,
		payments:       payments,
		replays:        replays,
		webhookSecret:  webhookSecret,
		logger:         log,
	}
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (h *StripeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
		h.logger.Error("PAYMENT", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
}

// CreatePaymentIntent handles POST /api/bookings/{id}/payment-intent/.
func (h *StripeHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.paymentService.CreateStripeIntent(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Payment intent created", resp)
}

// ListPayments handles GET /api/bookings/{id}/payments/.
func (h *StripeHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payments, err := h.paymentService.ListPayments(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payments retrieved", payments)
}

// VerifyPayment handles POST /api/payments/{id}/verify/.
func (h *StripeHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid request body")
		return
	}
	payment, err := h.paymentService.VerifyPayment(r.Context(), p, id, req.Approved)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment verified", payment)
}

func (h *StripeHandler) writeError(w http.ResponseWriter, e *WebhookError) {
	if e.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("WEBHOOK", e.InternalError)
	} else {
		h.logger.Warn("WEBHOOK", e.InternalError)
	}
	utils.WriteError(w, e.StatusCode, e.PublicError, e.PublicError)
}

// StripeWebhook handles POST /api/stripe/webhook/.
func (h *StripeHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		h.writeError(w, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		})
		return
	}
	payload, werr := readBody(r)
	if werr != nil {
		h.writeError(w, werr)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.LogSecurity("STRIPE_SIGNATURE", err.Error())
		h.writeError(w, validationError("Invalid webhook signature", fmt.Sprintf("stripe signature: %v", err), err))
		return
	}

	var status models.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.PaymentSuccess
	case "payment_intent.payment_failed":
		status = models.PaymentFailed
	default:
		h.logger.Debug("WEBHOOK", "ignoring stripe event "+string(event.Type))
		utils.WriteSuccess(w, http.StatusOK, "Event ignored", nil)
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.writeError(w, validationError("Invalid event data", fmt.Sprintf("unmarshal payment intent: %v", err), err))
		return
	}
	ticketID := intent.Metadata["ticket_id"]
	if ticketID == "" {
		h.writeError(w, validationError("Invalid payment intent data", "payment intent "+intent.ID+" has no ticket_id metadata", nil))
		return
	}

	key := idempotency.WebhookKey(models.GatewayStripe, event.ID, ticketID, string(status))
	if !claim(r.Context(), h.replays, h.logger, key) {
		h.Metrics.WebhookReplay()
		utils.WriteSuccess(w, http.StatusOK, "Already processed", nil)
		return
	}

	booking, err := h.payments.ConfirmPayment(r.Context(), tickets.PaymentConfirmation{
		TicketID:         ticketID,
		Status:           string(status),
		Gateway:          models.GatewayStripe,
		GatewayPaymentID: intent.ID,
		Amount:           float64(intent.Amount) / 100,
	})
	if err != nil {
		release(r.Context(), h.replays, h.logger, key)
		h.writeError(w, classifyConfirmError(ticketID, err))
		return
	}
	h.logger.LogPayment("STRIPE_"+string(status), booking.TicketID, intent.ID)
	utils.WriteSuccess(w, http.StatusOK, "Payment recorded", map[string]interface{}{
		"ticket_id": booking.TicketID,
		"status":    booking.Status,
	})
}
