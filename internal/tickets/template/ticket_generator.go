package template

import (
	"bytes"
	"fmt"
	"image/png"

	"qr-entry/internal/models"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "goregular"

// TicketPDFGenerator renders the PDF ticket mailed to purchasers.
type TicketPDFGenerator struct{}

func NewTicketPDFGenerator() *TicketPDFGenerator {
	return &TicketPDFGenerator{}
}

// Generate lays out one A4 page with the booking details and, when qrCode is a
// decodable PNG, the ticket QR underneath.
func (g *TicketPDFGenerator) Generate(booking *models.Booking, holder string, qrCode []byte) ([]byte, error) {
	if booking == nil {
		return nil, fmt.Errorf("nil booking")
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if err := pdf.SetFont(fontFamily, "", 20); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	addHeader(pdf)

	if err := pdf.SetFont(fontFamily, "", 13); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetY(110)
	addTicketInfo(pdf, booking, holder)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(720)
	addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name used for a ticket PDF.
func Filename(ticketID string) string {
	return ticketID + "_ticket.pdf"
}

func addHeader(pdf *gopdf.GoPdf) {
	pdf.SetX(60)
	pdf.SetY(60)
	pdf.Cell(nil, "QrEntry Ticket Confirmation")
}

func addTicketInfo(pdf *gopdf.GoPdf, booking *models.Booking, holder string) {
	info := []struct {
		Label string
		Value string
	}{
		{"Name", holder},
		{"Ticket ID", booking.TicketID},
		{"Status", string(booking.Status)},
	}
	if e := booking.Event; e != nil {
		info = append(info,
			struct{ Label, Value string }{"Event", e.Name},
			struct{ Label, Value string }{"Date", e.Date.Format("2006-01-02 15:04")},
			struct{ Label, Value string }{"Location", e.Location},
		)
	}

	for _, item := range info {
		if item.Value == "" {
			continue
		}
		pdf.SetX(60)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(22)
	}
	pdf.SetX(60)
	pdf.Cell(nil, "Please show this ticket at entry.")
	pdf.Br(22)
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.SetX(60)
		pdf.Cell(nil, "QR code unavailable")
		return
	}

	rect := &gopdf.Rect{W: 180, H: 180}
	if err := pdf.ImageFrom(img, 60, pdf.GetY(), rect); err != nil {
		pdf.SetX(60)
		pdf.Cell(nil, "QR code unavailable")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(60)
	pdf.Cell(nil, "Thank you for using QrEntry!")
}
