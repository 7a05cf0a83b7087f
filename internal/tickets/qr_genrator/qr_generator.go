package qr

import (
	"errors"
	"fmt"
	"net/url"
	"path"

	"qr-entry/internal/media"

	"github.com/skip2/go-qrcode"
)

const imageSize = 256

// FileWriter persists an artifact under a relative path and returns that path.
type FileWriter interface {
	Save(rel string, data []byte) (string, error)
}

type QRGenerator struct {
	files FileWriter
}

func NewQRGenerator(files FileWriter) *QRGenerator {
	return &QRGenerator{files: files}
}

// Encode renders payload as a PNG QR code. Decoding the image yields payload unchanged.
func Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty QR payload")
	}
	return qrcode.Encode(payload, qrcode.Medium, imageSize)
}

// Generate encodes payload and stores it as qr_codes/<filename>, returning the relative path.
func (q *QRGenerator) Generate(payload, filename string) (string, error) {
	png, err := Encode(payload)
	if err != nil {
		return "", fmt.Errorf("encode QR: %w", err)
	}
	rel, err := q.files.Save(path.Join(media.QRCodeDir, filename), png)
	if err != nil {
		return "", fmt.Errorf("store QR %s: %w", filename, err)
	}
	return rel, nil
}

// TicketFilename is the artifact name for a ticket's entry QR.
func TicketFilename(ticketID string) string {
	return ticketID + ".png"
}

// PaymentFilename is the artifact name for a ticket's UPI payment QR.
func PaymentFilename(ticketID string) string {
	return ticketID + "_upi.png"
}

// UPILink builds the upi://pay deep link for an event price in INR.
func UPILink(upiID, payeeName string, amount int64) string {
	q := url.Values{}
	q.Set("pa", upiID)
	q.Set("pn", payeeName)
	q.Set("am", fmt.Sprintf("%d", amount))
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}
