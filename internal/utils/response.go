package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"qr-entry/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

func WriteError(w http.ResponseWriter, status int, message, errText string) {
	WriteJSON(w, status, ErrorResponse(message, errText))
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err using StatusFor. Unclassified errors get a
// generic message; the detail is the caller's to log.
func WriteServiceError(w http.ResponseWriter, err error) int {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteError(w, status, "Internal server error", "internal server error")
		return status
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, status, APIResponse{
			Success:   false,
			Message:   "Validation failed",
			Data:      verr.Fields,
			Error:     verr.Error(),
			Timestamp: time.Now(),
		})
		return status
	}
	WriteError(w, status, http.StatusText(status), err.Error())
	return status
}
