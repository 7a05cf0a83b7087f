package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qr-entry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_EscapesAndUsesLayout(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	events := []models.Event{{ID: 3, Name: "<script>x</script>", Date: time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC), Location: "Hall"}}
	require.NoError(t, r.Render(rec, http.StatusOK, PageEvents, map[string]interface{}{"Events": events}))

	body := rec.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "<title>Events | QR Entry</title>")
	assert.Contains(t, body, `href="/events/3/"`)
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>x")
}

func TestRender_AttendResult(t *testing.T) {
	r := MustRenderer()
	rec := httptest.NewRecorder()
	res := models.CheckinResult{Outcome: models.OutcomeAlreadyUsed, TicketID: "abc"}
	require.NoError(t, r.Render(rec, http.StatusConflict, PageAttendResult, res))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ticket abc has already been used")
	assert.Contains(t, rec.Body.String(), `class="result bad"`)
}

func TestRender_UnknownPage(t *testing.T) {
	r := MustRenderer()
	assert.Error(t, r.Render(httptest.NewRecorder(), http.StatusOK, "nope.html", nil))
}
