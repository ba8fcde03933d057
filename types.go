package authkit

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/settings"
	"go.uber.org/zap"
)

// AccountType is the privilege level of an account.
type AccountType uint8

const (
	AccountGuest AccountType = iota
	AccountNormal
	AccountAdmin
)

// String returns the lowercase name used in session values and JSON.
func (t AccountType) String() string {
	switch t {
	case AccountGuest:
		return "guest"
	case AccountNormal:
		return "normal"
	case AccountAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseAccountType is the inverse of AccountType.String.
func ParseAccountType(s string) (AccountType, bool) {
	switch s {
	case "guest":
		return AccountGuest, true
	case "normal":
		return AccountNormal, true
	case "admin":
		return AccountAdmin, true
	default:
		return 0, false
	}
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t <= AccountAdmin
}

// UserStatus is the activation state of an account.
type UserStatus uint8

const (
	StatusPending UserStatus = iota
	StatusActivated
)

// User is a row of the user record store.
//
// Nil pointers mean "unset": an invited user has no PasswordHash until the
// invitation is completed, and a nil SessionID means no live session.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	NiceName string `db:"nice_name" json:"nice_name"`
	Email    string `db:"email" json:"email"`

	PasswordHash   *string    `db:"password_hash" json:"-"`
	ActivationHash *string    `db:"activation_hash" json:"-"`
	ResetHash      *string    `db:"reset_hash" json:"-"`
	ResetExpiresAt *time.Time `db:"reset_expires_at" json:"-"`

	SessionID     *string `db:"session_id" json:"-"`
	RememberToken *string `db:"remember_token" json:"-"`

	Status         UserStatus  `db:"status" json:"status"`
	AccountType    AccountType `db:"account_type" json:"account_type"`
	Deleted        bool        `db:"deleted" json:"deleted"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	SuspendedUntil *time.Time  `db:"suspended_until" json:"suspended_until,omitempty"`

	FailedLogins    int        `db:"failed_logins" json:"-"`
	LastFailedLogin *time.Time `db:"last_failed_login" json:"-"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`

	HasAvatar bool   `db:"has_avatar" json:"has_avatar"`
	AvatarID  string `db:"avatar_id" json:"avatar_id,omitempty"`
}

// Activated reports whether the account finished verification.
func (u User) Activated() bool {
	return u.Status == StatusActivated
}

// SuspendedAt reports whether the account is suspended at now and, if so,
// the remaining suspension.
func (u User) SuspendedAt(now time.Time) (time.Duration, bool) {
	if u.SuspendedUntil == nil || !u.SuspendedUntil.After(now) {
		return 0, false
	}
	return u.SuspendedUntil.Sub(now), true
}

// Profile is the public view of a user returned to admins.
type Profile struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	AccountType    string     `json:"account_type"`
	Activated      bool       `json:"activated"`
	Deleted        bool       `json:"deleted"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	HasAvatar      bool       `json:"has_avatar"`
}

func (u User) profile() Profile {
	return Profile{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		AccountType:    u.AccountType.String(),
		Activated:      u.Activated(),
		Deleted:        u.Deleted,
		SuspendedUntil: u.SuspendedUntil,
		HasAvatar:      u.HasAvatar,
	}
}

// NewUser is the insert payload for a user row.
type NewUser struct {
	Name           string
	NiceName       string
	Email          string
	PasswordHash   *string
	ActivationHash *string
	Status         UserStatus
	AccountType    AccountType
	CreatedAt      time.Time
}

// Setting is a single per-user key/value row.
type Setting = settings.Setting

// LoginInput is the credential form.
type LoginInput struct {
	Identifier string
	Password   string
	RememberMe bool
	Token      string
}

// RegistrationInput is the self-service sign-up form.
type RegistrationInput struct {
	Name           string
	Email          string
	EmailRepeat    string
	Password       string
	PasswordRepeat string
	Captcha        string
}

// CompletionInput finishes an invited account.
type CompletionInput struct {
	UserID         string
	Hash           string
	Name           string
	Password       string
	PasswordRepeat string
}

// PasswordResetInput sets a new password from a recovery link.
type PasswordResetInput struct {
	Name           string
	Hash           string
	Password       string
	PasswordRepeat string
}

// AdminCreateInput creates an activated account directly.
type AdminCreateInput struct {
	Name        string
	Email       string
	Password    string
	AccountType AccountType
}

// PasswordChangeInput changes the caller's own password.
type PasswordChangeInput struct {
	Current        string
	Password       string
	PasswordRepeat string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs events through zap.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] logging under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
