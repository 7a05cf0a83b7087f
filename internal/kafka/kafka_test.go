package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"qr-entry/internal/logger"
	"qr-entry/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishBookingEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w, logger.NewDiscardLogger())

	evt := models.BookingEvent{Type: models.BookingEventCreated, BookingID: 7, TicketID: "a1b2c3d4e5f6", Status: models.BookingPending}
	require.NoError(t, p.PublishBookingEvent(context.Background(), "qrentry.booking.created", evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "qrentry.booking.created", msg.Topic)
	assert.Equal(t, "a1b2c3d4e5f6", string(msg.Key))

	var decoded models.BookingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, models.BookingPending, decoded.Status)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducerWithWriter(w, logger.NewDiscardLogger())

	err := p.PublishBookingEvent(context.Background(), "t", models.BookingEvent{Type: models.BookingEventCreated})
	assert.ErrorContains(t, err, "broker down")
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func encode(t *testing.T, evt models.BookingEvent) []byte {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return b
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: encode(t, models.BookingEvent{Type: models.BookingEventCreated, TicketID: "ok"})},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: encode(t, models.BookingEvent{Type: models.BookingEventCreated, TicketID: "flaky"})},
		},
	}
	c := newConsumerWithReader(r, logger.NewDiscardLogger())

	calls := map[string]int{}
	err := c.Start(ctx, func(_ context.Context, evt models.BookingEvent) error {
		calls[evt.TicketID]++
		if evt.TicketID == "flaky" && calls[evt.TicketID] < 2 {
			return errors.New("smtp unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls["ok"])
	assert.Equal(t, 2, calls["flaky"])
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishBookingEvent(context.Background(), "x", models.BookingEvent{}))
}
