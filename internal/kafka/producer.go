package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes booking lifecycle events. The topic is chosen per message.
type Producer struct {
	writer messageWriter
	logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, logger: log}
}

func newProducerWithWriter(w messageWriter, log *logger.Logger) *Producer {
	return &Producer{writer: w, logger: log}
}

// PublishBookingEvent writes evt to topic keyed by ticket id, so every event for
// one ticket lands on the same partition in order.
func (p *Producer) PublishBookingEvent(ctx context.Context, topic string, evt models.BookingEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}
	key := evt.TicketID
	if key == "" {
		key = strconv.FormatInt(evt.BookingID, 10)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		p.logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("%s for %s: %v", evt.Type, evt.TicketID, err))
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	p.logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("%s for %s", evt.Type, evt.TicketID))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishBookingEvent(context.Context, string, models.BookingEvent) error {
	return nil
}
