package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
)

// ParsePaymentStatus accepts gateway spellings case-insensitively.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentInitiated:
		return PaymentInitiated, true
	case PaymentSuccess:
		return PaymentSuccess, true
	case PaymentFailed:
		return PaymentFailed, true
	}
	return "", false
}

const (
	GatewayWebhook = "webhook"
	GatewayStripe  = "stripe"
	GatewayManual  = "manual"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID               int64         `json:"id" bun:"id,pk,autoincrement"`
	BookingID        int64         `json:"booking_id" bun:"booking_id,notnull"`
	Gateway          string        `json:"gateway" bun:"gateway,notnull"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty" bun:"gateway_payment_id,nullzero"`
	Amount           float64       `json:"amount" bun:"amount,notnull"`
	Status           PaymentStatus `json:"status" bun:"status,notnull"`
	Screenshot       string        `json:"screenshot,omitempty" bun:"screenshot,nullzero"`
	CreatedAt        time.Time     `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time     `json:"updated_at" bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Booking *Booking `json:"-" bun:"rel:belongs-to,join:booking_id=id"`
}

// PaymentNotification is the body accepted by the generic payment webhook.
type PaymentNotification struct {
	TicketID         string  `json:"ticket_id"`
	Status           string  `json:"status"`
	GatewayPaymentID string  `json:"payment_id,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
}

type PaymentIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type VerifyPaymentRequest struct {
	Approved bool `json:"approved"`
}
