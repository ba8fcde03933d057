package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authkit"
)

var (
	_ authkit.UserStore    = (*Store)(nil)
	_ authkit.SettingStore = (*Store)(nil)
)

const userColumns = `id, name, nice_name, email, password_hash, activation_hash, reset_hash,
	reset_expires_at, session_id, remember_token, status, account_type, deleted, deleted_at,
	suspended_until, failed_logins, last_failed_login, last_login_at, created_at, has_avatar, avatar_id`

func mapErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", authkit.ErrDuplicateUser, err)
	}
	return err
}

func (s *Store) findOne(ctx context.Context, op, where string, args ...any) (*authkit.User, error) {
	u := &authkit.User{}
	err := s.db.GetContext(ctx, u, s.q(`SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authkit.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*authkit.User, error) {
	return s.findOne(ctx, "find user by id", `id = ?`, id)
}

func (s *Store) FindByName(ctx context.Context, name string) (*authkit.User, error) {
	return s.findOne(ctx, "find user by name", `name = ?`, name)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authkit.User, error) {
	return s.findOne(ctx, "find user by email", `email = ?`, email)
}

func (s *Store) FindByNameOrEmail(ctx context.Context, identifier string) (*authkit.User, error) {
	return s.findOne(ctx, "find user by name or email", `name = ? OR email = ?`, identifier, identifier)
}

func (s *Store) FindByRememberToken(ctx context.Context, id int64, token string) (*authkit.User, error) {
	return s.findOne(ctx, "find user by remember token", `id = ? AND remember_token = ?`, id, token)
}

func (s *Store) FindByResetHash(ctx context.Context, name, hash string) (*authkit.User, error) {
	return s.findOne(ctx, "find user by reset hash", `name = ? AND reset_hash = ?`, name, hash)
}

func (s *Store) CountInvitation(ctx context.Context, id int64, hash string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM users
		WHERE id = ? AND activation_hash = ? AND password_hash IS NULL`), id, hash)
	if err != nil {
		return 0, fmt.Errorf("count invitation: %w", err)
	}
	return n, nil
}

func (s *Store) exists(ctx context.Context, op, where string, arg any) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM users WHERE `+where), arg); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (s *Store) NameExists(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, "name exists", `name = ?`, name)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email exists", `email = ?`, email)
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]authkit.User, error) {
	users := []authkit.User{}
	err := s.db.SelectContext(ctx, &users,
		s.q(`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) Insert(ctx context.Context, u authkit.NewUser) (int64, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`INSERT INTO users
		(name, nice_name, email, password_hash, activation_hash, status, account_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.NiceName, u.Email, u.PasswordHash, u.ActivationHash,
		int(u.Status), int(u.AccountType), createdAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", mapErr(err))
	}
	return id, nil
}

// Delete removes the row and its settings in one transaction.
func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete user: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM user_settings WHERE user_id = ?`), id); err != nil {
		return 0, fmt.Errorf("delete user settings: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user: getting rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete user: commit: %w", err)
	}
	return n, nil
}

func (s *Store) ActivateRegistered(ctx context.Context, id int64, hash string) (int64, error) {
	return s.exec(ctx, "activate user", `UPDATE users SET status = ?, activation_hash = NULL
		WHERE id = ? AND activation_hash = ? AND password_hash IS NOT NULL`,
		int(authkit.StatusActivated), id, hash)
}

func (s *Store) CompleteInvitation(ctx context.Context, id int64, hash, name, passwordHash string) (int64, error) {
	return s.exec(ctx, "complete invitation", `UPDATE users
		SET name = ?, nice_name = ?, password_hash = ?, status = ?, activation_hash = NULL
		WHERE id = ? AND activation_hash = ? AND password_hash IS NULL`,
		name, name, passwordHash, int(authkit.StatusActivated), id, hash)
}

func (s *Store) RecordFailedLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.exec(ctx, "record failed login", `UPDATE users
		SET failed_logins = failed_logins + 1, last_failed_login = ? WHERE id = ?`, at.UTC(), id)
	return err
}

func (s *Store) RecordLogin(ctx context.Context, id int64, sessionID string, rememberToken *string, at time.Time) error {
	_, err := s.exec(ctx, "record login", `UPDATE users
		SET failed_logins = 0, last_failed_login = NULL, last_login_at = ?, session_id = ?,
			remember_token = COALESCE(?, remember_token)
		WHERE id = ?`, at.UTC(), sessionID, rememberToken, id)
	return err
}

func (s *Store) SessionID(ctx context.Context, id int64) (*string, error) {
	var sid *string
	err := s.db.GetContext(ctx, &sid, s.q(`SELECT session_id FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authkit.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return sid, nil
}

func (s *Store) ClearSession(ctx context.Context, id int64, sessionID string) (int64, error) {
	return s.exec(ctx, "clear session", `UPDATE users SET session_id = NULL, remember_token = NULL
		WHERE id = ? AND session_id = ?`, id, sessionID)
}

func (s *Store) SetSessionID(ctx context.Context, id int64, sessionID *string) error {
	_, err := s.exec(ctx, "set session id", `UPDATE users SET session_id = ? WHERE id = ?`, sessionID, id)
	return err
}

func (s *Store) SetResetHash(ctx context.Context, id int64, hash string, expiresAt time.Time) error {
	_, err := s.exec(ctx, "set reset hash", `UPDATE users SET reset_hash = ?, reset_expires_at = ?
		WHERE id = ?`, hash, expiresAt.UTC(), id)
	return err
}

// ResetPassword compares the expiry in Go. The update is guarded by the hash,
// so a link applies once.
func (s *Store) ResetPassword(ctx context.Context, name, hash, passwordHash string, now time.Time) (int64, error) {
	u, err := s.FindByResetHash(ctx, name, hash)
	if errors.Is(err, authkit.ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if u.ResetExpiresAt == nil || !u.ResetExpiresAt.After(now) {
		return 0, nil
	}
	return s.exec(ctx, "reset password", `UPDATE users
		SET password_hash = ?, reset_hash = NULL, reset_expires_at = NULL,
			failed_logins = 0, last_failed_login = NULL
		WHERE id = ? AND reset_hash = ?`, passwordHash, u.ID, hash)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.exec(ctx, "update password", `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	return err
}

func (s *Store) SetSuspension(ctx context.Context, id int64, until *time.Time) (int64, error) {
	return s.exec(ctx, "set suspension", `UPDATE users SET suspended_until = ? WHERE id = ?`, utc(until), id)
}

func (s *Store) SetDeleted(ctx context.Context, id int64, deleted bool, at *time.Time) (int64, error) {
	return s.exec(ctx, "set deleted", `UPDATE users SET deleted = ?, deleted_at = ? WHERE id = ?`,
		deleted, utc(at), id)
}

func (s *Store) SetAccountType(ctx context.Context, id int64, t authkit.AccountType) (int64, error) {
	return s.exec(ctx, "set account type", `UPDATE users SET account_type = ? WHERE id = ?`, int(t), id)
}

func (s *Store) UpdateName(ctx context.Context, id int64, name string) (int64, error) {
	return s.exec(ctx, "update name", `UPDATE users SET name = ?, nice_name = ? WHERE id = ?`, name, name, id)
}

func (s *Store) UpdateEmail(ctx context.Context, id int64, email string) (int64, error) {
	return s.exec(ctx, "update email", `UPDATE users SET email = ? WHERE id = ?`, email, id)
}

func (s *Store) SetAvatar(ctx context.Context, id int64, has bool, avatarID string) (int64, error) {
	return s.exec(ctx, "set avatar", `UPDATE users SET has_avatar = ?, avatar_id = ? WHERE id = ?`, has, avatarID, id)
}
