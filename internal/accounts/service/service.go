package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"qr-entry/internal/auth"
	"qr-entry/internal/logger"
	"qr-entry/internal/models"
	"qr-entry/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

type AccountDBLayer interface {
	CreateAccount(ctx context.Context, account *models.Account, role models.Role) error
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

type SessionStore interface {
	Save(ctx context.Context, jti string, session auth.Session) error
	Delete(ctx context.Context, jti string) error
}

type AccountService struct {
	DB         AccountDBLayer
	Tokens     *auth.TokenManager
	Sessions   SessionStore
	Logger     *logger.Logger
	BcryptCost int
}

func NewAccountService(db AccountDBLayer, tokens *auth.TokenManager, sessions SessionStore, log *logger.Logger) *AccountService {
	return &AccountService{DB: db, Tokens: tokens, Sessions: sessions, Logger: log, BcryptCost: bcrypt.DefaultCost}
}

func (s *AccountService) hash(password string) (string, error) {
	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Signup registers a password account with the requested role.
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, models.NewValidationError("confirm_password", "passwords do not match")
	}

	if _, err := s.DB.GetAccountByUsername(ctx, req.Username); err == nil {
		return nil, models.NewValidationError("username", "is already taken")
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, err
	}
	if _, err := s.DB.GetAccountByEmail(ctx, req.Email); err == nil {
		return nil, models.NewValidationError("email", "is already registered")
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	account := &models.Account{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.DB.CreateAccount(ctx, account, req.Role); err != nil {
		if errors.Is(err, models.ErrDuplicateAccount) {
			return nil, models.NewValidationError("username", "username or email already registered")
		}
		return nil, err
	}
	s.Logger.Info("ACCOUNT", fmt.Sprintf("account %d (%s) signed up as %s", account.ID, account.Username, req.Role))
	return account, nil
}

// Login verifies the password and opens a session. Every failure looks the same to the caller.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	account, err := s.DB.GetAccountByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, models.ErrAccountNotFound) {
		s.Logger.LogSecurity("LOGIN_FAILED", "unknown username "+req.Username)
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if account.IsGuest() || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", "bad password for "+account.Username)
		return nil, models.ErrInvalidCredentials
	}

	token, claims, err := s.Tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	expires := claims.ExpiresAt.Time
	if err := s.Sessions.Save(ctx, claims.ID, auth.Session{AccountID: account.ID, Username: account.Username, ExpiresAt: expires}); err != nil {
		return nil, err
	}
	s.Logger.Info("ACCOUNT", fmt.Sprintf("account %d logged in", account.ID))
	return &models.LoginResponse{Token: token, ExpiresAt: expires, Account: account}, nil
}

// Logout revokes the session behind jti.
func (s *AccountService) Logout(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, jti)
}

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// EnsureGuest returns the guest account registered under email, creating a
// passwordless participant when none exists. An email that belongs to a
// password account is refused; its owner has to log in and book.
func (s *AccountService) EnsureGuest(ctx context.Context, name, email string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	existing, err := s.DB.GetAccountByEmail(ctx, email)
	if err == nil {
		return s.guestOnly(existing)
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, err
	}

	base := strings.Trim(usernameUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "guest"
	}
	if len(base) > 100 {
		base = base[:100]
	}
	account := &models.Account{Username: base + "-" + utils.GenerateFileToken(), Email: email}
	if err := s.DB.CreateAccount(ctx, account, models.RoleParticipant); err != nil {
		if errors.Is(err, models.ErrDuplicateAccount) {
			// A concurrent registration with the same email won.
			winner, err := s.DB.GetAccountByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			return s.guestOnly(winner)
		}
		return nil, err
	}
	s.Logger.Info("ACCOUNT", fmt.Sprintf("guest account %d created for %s", account.ID, email))
	return account, nil
}

func (s *AccountService) guestOnly(account *models.Account) (*models.Account, error) {
	if !account.IsGuest() {
		s.Logger.LogSecurity("GUEST_REGISTRATION_REFUSED", fmt.Sprintf("email of account %d used for guest registration", account.ID))
		return nil, models.NewValidationError("email", "belongs to a registered account, log in to book")
	}
	return account, nil
}

// ProvisionAdmin creates a staff superuser organiser unless the username exists.
// It reports whether an account was created.
func (s *AccountService) ProvisionAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if username == "" || password == "" {
		return false, models.NewValidationError("password", "admin username and password are required")
	}
	if _, err := s.DB.GetAccountByUsername(ctx, username); err == nil {
		s.Logger.Info("ACCOUNT", fmt.Sprintf("admin %q already present", username))
		return false, nil
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return false, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return false, err
	}
	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.DB.CreateAccount(ctx, account, models.RoleOrganiser); err != nil {
		if errors.Is(err, models.ErrDuplicateAccount) {
			return false, nil
		}
		return false, err
	}
	s.Logger.LogSecurity("ADMIN_PROVISIONED", fmt.Sprintf("admin %q created with id %d", username, account.ID))
	return true, nil
}
