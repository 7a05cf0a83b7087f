package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleOrganiser   Role = "organiser"
	RoleParticipant Role = "participant"
)

func (r Role) Valid() bool {
	return r == RoleOrganiser || r == RoleParticipant
}

type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           int64     `json:"id" bun:"id,pk,autoincrement"`
	Username     string    `json:"username" bun:"username,unique,notnull"`
	Email        string    `json:"email" bun:"email,unique,notnull"`
	PasswordHash string    `json:"-" bun:"password_hash"`
	IsStaff      bool      `json:"is_staff" bun:"is_staff,notnull"`
	IsSuperuser  bool      `json:"is_superuser" bun:"is_superuser,notnull"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`

	Profile *Profile `json:"profile,omitempty" bun:"rel:has-one,join:id=account_id"`
}

// IsGuest reports whether the account was created by guest registration
// and therefore has no usable password.
func (a *Account) IsGuest() bool {
	return a.PasswordHash == ""
}

// Role falls back to participant when no profile is loaded.
func (a *Account) Role() Role {
	if a.Profile == nil {
		return RoleParticipant
	}
	return a.Profile.Role
}

type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	ID        int64 `json:"id" bun:"id,pk,autoincrement"`
	AccountID int64 `json:"account_id" bun:"account_id,unique,notnull"`
	Role      Role  `json:"role" bun:"role,notnull"`
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	IsStaff   bool   `json:"is_staff"`
}

func (p Principal) IsOrganiser() bool {
	return p.Role == RoleOrganiser
}

// CanManageEvent is true for staff and for the organiser who owns the event.
func (p Principal) CanManageEvent(e *Event) bool {
	if p.IsStaff {
		return true
	}
	return e != nil && e.OrganizerID == p.AccountID
}

type SignupRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Role            Role   `json:"role" validate:"required,oneof=organiser participant"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   *Account  `json:"account"`
}

type GuestRegistration struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	EventID int64  `json:"event_id" validate:"required,gt=0"`
}
