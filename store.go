package authkit

import (
	"context"
	"time"

	"github.com/MrEthical07/authkit/mail"
	"github.com/MrEthical07/authkit/session"
)

// UserStore persists user records.
//
// Lookups return [ErrUserNotFound] when no row matches. Mutations return the
// number of rows affected so the Engine can tell a guarded update that lost
// its race (0 rows) from one that applied. Any other error is treated as an
// infrastructure failure.
//
// Implementations must be safe for concurrent use.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByName(ctx context.Context, name string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByNameOrEmail matches identifier against either column.
	FindByNameOrEmail(ctx context.Context, identifier string) (*User, error)
	// FindByRememberToken matches id and the stored remember-me token.
	FindByRememberToken(ctx context.Context, id int64, token string) (*User, error)
	// FindByResetHash matches a name whose reset hash is set and equals hash.
	FindByResetHash(ctx context.Context, name, hash string) (*User, error)
	// CountInvitation counts pending invited rows with id and activation hash.
	CountInvitation(ctx context.Context, id int64, hash string) (int, error)
	NameExists(ctx context.Context, name string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context, offset, limit int) ([]User, error)

	// Insert returns the new id or ErrDuplicateUser.
	Insert(ctx context.Context, u NewUser) (int64, error)
	// Delete removes the row and its settings in one transaction.
	Delete(ctx context.Context, id int64) (int64, error)

	// ActivateRegistered activates a self-registered row (password set) when
	// the activation hash matches, clearing the hash.
	ActivateRegistered(ctx context.Context, id int64, hash string) (int64, error)
	// CompleteInvitation activates an invited row (no password yet) when the
	// activation hash matches, setting name and password.
	CompleteInvitation(ctx context.Context, id int64, hash, name, passwordHash string) (int64, error)

	RecordFailedLogin(ctx context.Context, id int64, at time.Time) error
	// RecordLogin stores the live session id and remember token and resets
	// the failure counters.
	RecordLogin(ctx context.Context, id int64, sessionID string, rememberToken *string, at time.Time) error
	SessionID(ctx context.Context, id int64) (*string, error)
	// ClearSession clears session id and remember token only while the row
	// still holds sessionID.
	ClearSession(ctx context.Context, id int64, sessionID string) (int64, error)
	SetSessionID(ctx context.Context, id int64, sessionID *string) error

	SetResetHash(ctx context.Context, id int64, hash string, expiresAt time.Time) error
	// ResetPassword sets the password of the named row when hash matches a
	// reset hash not expired at now, clearing the hash.
	ResetPassword(ctx context.Context, name, hash, passwordHash string, now time.Time) (int64, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error

	SetSuspension(ctx context.Context, id int64, until *time.Time) (int64, error)
	SetDeleted(ctx context.Context, id int64, deleted bool, at *time.Time) (int64, error)
	SetAccountType(ctx context.Context, id int64, t AccountType) (int64, error)
	UpdateName(ctx context.Context, id int64, name string) (int64, error)
	UpdateEmail(ctx context.Context, id int64, email string) (int64, error)
	SetAvatar(ctx context.Context, id int64, has bool, avatarID string) (int64, error)
}

// SettingStore persists per-user key/value settings.
type SettingStore interface {
	Settings(ctx context.Context, userID int64) ([]Setting, error)
	// Setting returns ErrSettingNotFound for unknown keys.
	Setting(ctx context.Context, userID int64, key string) (string, error)
	// PutSetting inserts or updates one key.
	PutSetting(ctx context.Context, userID int64, key, value string) error
	DeleteSetting(ctx context.Context, userID int64, key string) (int64, error)
	DeleteSettings(ctx context.Context, userID int64) error
	InsertSettings(ctx context.Context, userID int64, settings []Setting) error
}

// Mailer delivers outgoing mail.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// CaptchaValidator checks a challenge answer stored in the session.
type CaptchaValidator interface {
	Validate(ctx context.Context, sess *session.Session, scope, answer string) bool
}

// DefaultsLoader returns the settings a new account starts with.
type DefaultsLoader interface {
	LoadDefaults(ctx context.Context, userID int64) ([]Setting, error)
}
