package utils

import (
	"strings"

	"github.com/google/uuid"
)

// TicketIDLength is the number of hex characters in a ticket identifier.
// 12 hex chars give 48 bits, keeping the collision probability below one in
// a million until roughly 23 thousand tickets.
const TicketIDLength = 12

// GenerateTicketID returns a short, URL-safe ticket identifier cut from a random UUID.
func GenerateTicketID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:TicketIDLength]
}

// GenerateFileToken returns a short random token for uploaded file names.
func GenerateFileToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GenerateSessionID creates the jti for an issued token.
func GenerateSessionID() string {
	return uuid.NewString()
}
