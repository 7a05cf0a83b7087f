package account_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	accounts "qr-entry/internal/accounts/service"
	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"
)

type Handler struct {
	Accounts     *accounts.AccountService
	CookieName   string
	SecureCookie bool
	Logger       *logger.Logger
}

func NewHandler(svc *accounts.AccountService, cookieName string, log *logger.Logger) *Handler {
	return &Handler{Accounts: svc, CookieName: cookieName, Logger: log}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := utils.WriteServiceError(w, err); status == http.StatusInternalServerError {
		h.Logger.Error("ACCOUNT", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
}

// decode accepts a JSON body or an HTML form, so the same routes serve API clients and pages.
func decode(r *http.Request, dst interface{}, fromForm func(get func(string) string)) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostForm.Get)
	return nil
}

// Signup handles POST /signup/.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	err := decode(r, &req, func(get func(string) string) {
		req.Username = get("username")
		req.Email = get("email")
		req.Password = get("password")
		req.ConfirmPassword = get("confirm_password")
		req.Role = models.Role(get("role"))
	})
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid request body")
		return
	}
	account, err := h.Accounts.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Account created", account)
}

// Login handles POST /login/ and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	err := decode(r, &req, func(get func(string) string) {
		req.Username = get("username")
		req.Password = get("password")
	})
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request", "invalid request body")
		return
	}
	resp, err := h.Accounts.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    resp.Token,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteSuccess(w, http.StatusOK, "Logged in", resp)
}

// Logout handles POST /logout/. Requests without a session still get the cookie cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Accounts.Logout(r.Context(), auth.TokenID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		utils.WriteSuccess(w, http.StatusOK, "Logged out", nil)
		return
	}
	http.Redirect(w, r, "/events/", http.StatusSeeOther)
}
