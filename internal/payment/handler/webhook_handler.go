package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"qr-entry/internal/logger"
	"qr-entry/internal/metrics"
	"qr-entry/internal/models"
	"qr-entry/internal/payment/idempotency"
	tickets "qr-entry/internal/tickets/service"
	"qr-entry/internal/utils"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string // safe to send to the gateway
	InternalError string // logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, c tickets.PaymentConfirmation) (*models.Booking, error)
}

type ReplayGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type WebhookHandler struct {
	Payments PaymentConfirmer
	Replays  ReplayGuard
	Secret   string
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

func NewWebhookHandler(payments PaymentConfirmer, replays ReplayGuard, secret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{Payments: payments, Replays: replays, Secret: secret, Logger: log}
}

func validationError(public, internal string, err error) *WebhookError {
	return &WebhookError{Category: "validation", StatusCode: http.StatusBadRequest, PublicError: public, InternalError: internal, OriginalErr: err}
}

// classifyConfirmError turns a ConfirmPayment failure into a response that names no internals.
func classifyConfirmError(ticketID string, err error) *WebhookError {
	e := &WebhookError{Category: "processing", OriginalErr: err, InternalError: fmt.Sprintf("confirm %s: %v", ticketID, err)}
	switch {
	case errors.Is(err, models.ErrValidation):
		e.Category, e.StatusCode, e.PublicError = "validation", http.StatusBadRequest, "Invalid payment notification"
	case errors.Is(err, models.ErrNotFound):
		e.StatusCode, e.PublicError = http.StatusNotFound, "Unknown ticket"
	case errors.Is(err, models.ErrConflict):
		e.StatusCode, e.PublicError = http.StatusConflict, "Booking cannot accept this payment"
	default:
		e.StatusCode, e.PublicError = http.StatusInternalServerError, "Webhook processing error"
	}
	return e
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, e *WebhookError) {
	if e.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("WEBHOOK", e.InternalError)
	} else {
		h.Logger.Warn("WEBHOOK", e.InternalError)
	}
	utils.WriteError(w, e.StatusCode, e.PublicError, e.PublicError)
}

func readBody(r *http.Request) ([]byte, *WebhookError) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, validationError("Invalid webhook payload", fmt.Sprintf("read webhook payload: %v", err), err)
	}
	return payload, nil
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) verifySignature(r *http.Request, payload []byte) *WebhookError {
	if h.Secret == "" {
		return nil
	}
	given, err := hex.DecodeString(strings.TrimSpace(r.Header.Get(SignatureHeader)))
	expected, _ := hex.DecodeString(Sign(h.Secret, payload))
	if err != nil || !hmac.Equal(given, expected) {
		h.Logger.LogSecurity("WEBHOOK_SIGNATURE", "rejected payment webhook from "+r.RemoteAddr)
		return &WebhookError{Category: "validation", StatusCode: http.StatusUnauthorized, PublicError: "Invalid webhook signature", InternalError: "payment webhook signature mismatch"}
	}
	return nil
}

// claim reports whether this delivery is new. A guard outage lets the delivery
// through; ConfirmPayment is itself idempotent for bookings already paid.
func claim(ctx context.Context, guard ReplayGuard, log *logger.Logger, key string) bool {
	if guard == nil {
		return true
	}
	fresh, err := guard.Claim(ctx, key)
	if err != nil {
		log.Warn("WEBHOOK", fmt.Sprintf("replay guard unavailable: %v", err))
		return true
	}
	return fresh
}

func release(ctx context.Context, guard ReplayGuard, log *logger.Logger, key string) {
	if guard == nil {
		return
	}
	if err := guard.Release(ctx, key); err != nil {
		log.Warn("WEBHOOK", err.Error())
	}
}

// PaymentWebhook handles POST /api/payment-webhook/.
func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, werr := readBody(r)
	if werr != nil {
		h.writeError(w, werr)
		return
	}
	if werr := h.verifySignature(r, payload); werr != nil {
		h.writeError(w, werr)
		return
	}

	var n models.PaymentNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		h.writeError(w, validationError("Invalid webhook payload", fmt.Sprintf("decode webhook: %v", err), err))
		return
	}
	status, ok := models.ParsePaymentStatus(n.Status)
	if !ok || status == models.PaymentInitiated {
		h.writeError(w, validationError("Invalid payment status", "unsupported status "+n.Status, nil))
		return
	}
	n.TicketID = strings.TrimSpace(n.TicketID)
	if n.TicketID == "" {
		h.writeError(w, validationError("Missing ticket_id", "webhook without ticket_id", nil))
		return
	}

	key := idempotency.WebhookKey(models.GatewayWebhook, n.GatewayPaymentID, n.TicketID, string(status))
	if !claim(r.Context(), h.Replays, h.Logger, key) {
		h.Metrics.WebhookReplay()
		h.Logger.LogPayment("REPLAY", n.TicketID, "duplicate "+string(status)+" notification ignored")
		utils.WriteSuccess(w, http.StatusOK, "Already processed", nil)
		return
	}

	booking, err := h.Payments.ConfirmPayment(r.Context(), tickets.PaymentConfirmation{
		TicketID:         n.TicketID,
		Status:           string(status),
		Gateway:          models.GatewayWebhook,
		GatewayPaymentID: n.GatewayPaymentID,
		Amount:           n.Amount,
	})
	if err != nil {
		release(r.Context(), h.Replays, h.Logger, key)
		h.writeError(w, classifyConfirmError(n.TicketID, err))
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment recorded", map[string]interface{}{
		"ticket_id": booking.TicketID,
		"status":    booking.Status,
	})
}
