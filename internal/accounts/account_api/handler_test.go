package account_api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"qr-entry/internal/accounts/account_api"
	"qr-entry/internal/accounts/db"
	accounts "qr-entry/internal/accounts/service"
	"qr-entry/internal/auth"
	"qr-entry/internal/database/dbtest"
	"qr-entry/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "qrentry_session"

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewDiscardLogger()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	sessions := auth.NewRedisSessionStore(client)
	svc := accounts.NewAccountService(&db.DB{Bun: dbtest.New(t)}, tokens, sessions, log)
	svc.BcryptCost = bcrypt.MinCost

	h := account_api.NewHandler(svc, cookieName, log)
	authn := auth.NewAuthenticator(tokens, sessions, cookieName, log)

	r := chi.NewRouter()
	r.Post("/signup/", h.Signup)
	r.Post("/login/", h.Login)
	r.With(authn.Optional).Post("/logout/", h.Logout)
	r.With(authn.Middleware).Get("/me/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestSignupLoginLogout(t *testing.T) {
	router := newRouter(t)

	rec := postJSON(router, "/signup/", `{"username":"ana","email":"ana@example.com","password":"correct-horse","confirm_password":"correct-horse","role":"participant"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = postJSON(router, "/login/", `{"username":"ana","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, cookie.Value, body.Data.Token)

	me := httptest.NewRequest(http.MethodGet, "/me/", nil)
	me.AddCookie(cookie)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, me)
	assert.Equal(t, http.StatusNoContent, meRec.Code)

	out := httptest.NewRequest(http.MethodPost, "/logout/", nil)
	out.Header.Set("Accept", "application/json")
	out.AddCookie(cookie)
	outRec := httptest.NewRecorder()
	router.ServeHTTP(outRec, out)
	require.Equal(t, http.StatusOK, outRec.Code)

	// The token is still well-formed but its session is gone.
	me = httptest.NewRequest(http.MethodGet, "/me/", nil)
	me.AddCookie(cookie)
	meRec = httptest.NewRecorder()
	router.ServeHTTP(meRec, me)
	assert.Equal(t, http.StatusUnauthorized, meRec.Code)
}

func TestSignup_FormAndValidation(t *testing.T) {
	router := newRouter(t)

	form := url.Values{
		"username":         {"bob"},
		"email":            {"not-an-email"},
		"password":         {"short"},
		"confirm_password": {"short"},
		"role":             {"organiser"},
	}
	req := httptest.NewRequest(http.MethodPost, "/signup/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Data, "email")
	assert.Contains(t, body.Data, "password")
}

func TestLogin_BadCredentials(t *testing.T) {
	router := newRouter(t)
	rec := postJSON(router, "/login/", `{"username":"ghost","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestLogout_AnonymousRedirects(t *testing.T) {
	router := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/logout/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/events/", rec.Header().Get("Location"))
}
