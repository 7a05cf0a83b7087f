package template

import (
	"bytes"
	"testing"
	"time"

	"qr-entry/internal/models"
	qr "qr-entry/internal/tickets/qr_genrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:       7,
		TicketID: "TKT-A1B2C3D4",
		Status:   models.BookingPending,
		Event: &models.Event{
			Name:     "Go Meetup",
			Location: "Hall 2",
			Date:     time.Date(2026, 11, 3, 18, 30, 0, 0, time.UTC),
		},
	}
}

func TestGenerate_WithQR(t *testing.T) {
	png, err := qr.Encode("TKT-A1B2C3D4")
	require.NoError(t, err)

	out, err := NewTicketPDFGenerator().Generate(sampleBooking(), "alice", png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	plain, err := NewTicketPDFGenerator().Generate(sampleBooking(), "alice", nil)
	require.NoError(t, err)
	assert.Greater(t, len(out), len(plain), "embedded QR should add an image stream")
}

func TestGenerate_BadQRStillRenders(t *testing.T) {
	out, err := NewTicketPDFGenerator().Generate(sampleBooking(), "alice", []byte("not a png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerate_NilBooking(t *testing.T) {
	_, err := NewTicketPDFGenerator().Generate(nil, "alice", nil)
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "TKT-1_ticket.pdf", Filename("TKT-1"))
}
