// Package idempotency remembers which webhook deliveries were already applied.
package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultTTL = 24 * time.Hour

type ReplayGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewReplayGuard(client *redis.Client, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReplayGuard{Client: client, TTL: ttl}
}

// WebhookKey names one delivery from gateway. A gateway supplied id (payment
// id, Stripe event id) identifies the delivery; without one the ticket and
// status stand in for it.
func WebhookKey(gateway, deliveryID, ticketID, status string) string {
	status = strings.ToUpper(status)
	if deliveryID != "" {
		return fmt.Sprintf("webhook:%s:id:%s:%s", gateway, deliveryID, status)
	}
	return fmt.Sprintf("webhook:%s:ticket:%s:%s", gateway, ticketID, status)
}

// Claim returns true for the first caller presenting key within the TTL.
func (g *ReplayGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release forgets key so a delivery that failed downstream can be retried.
func (g *ReplayGuard) Release(ctx context.Context, key string) error {
	if err := g.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
