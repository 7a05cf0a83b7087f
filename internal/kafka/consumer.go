package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BookingEventHandler processes one decoded event. A returned error triggers a retry.
type BookingEventHandler func(ctx context.Context, evt models.BookingEvent) error

type Consumer struct {
	reader      messageReader
	logger      *logger.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer creates a consumer group member for topic.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log, maxAttempts: 3, backoff: time.Second}
}

func newConsumerWithReader(r messageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: r, logger: log, maxAttempts: 3, backoff: time.Millisecond}
}

// Start consumes until ctx is cancelled. Offsets are committed only after the
// handler succeeds or its attempts are exhausted; undecodable messages are skipped.
func (c *Consumer) Start(ctx context.Context, handler BookingEventHandler) error {
	c.logger.LogKafka("CONSUMER_STARTED", "", "waiting for booking events")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.LogKafka("FETCH_FAILED", "", err.Error())
			continue
		}

		var evt models.BookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.logger.LogKafka("DECODE_FAILED", msg.Topic, fmt.Sprintf("offset %d: %v", msg.Offset, err))
		} else {
			c.handle(ctx, msg, evt, handler)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.LogKafka("COMMIT_FAILED", msg.Topic, err.Error())
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, evt models.BookingEvent, handler BookingEventHandler) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := handler(ctx, evt)
		if err == nil {
			c.logger.LogKafka("HANDLED", msg.Topic, fmt.Sprintf("%s for %s", evt.Type, evt.TicketID))
			return
		}
		c.logger.LogKafka("HANDLER_FAILED", msg.Topic,
			fmt.Sprintf("%s for %s (attempt %d/%d): %v", evt.Type, evt.TicketID, attempt, c.maxAttempts, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	c.logger.Error("KAFKA", fmt.Sprintf("giving up on %s for %s", evt.Type, evt.TicketID))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
