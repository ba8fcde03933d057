package authkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Session keys written by the engine.
const (
	sessionKeyUserID          = "user_id"
	sessionKeyUserName        = "user_name"
	sessionKeyUserEmail       = "user_email"
	sessionKeyAccountType     = "user_account_type"
	sessionKeyAvatar          = "user_avatar"
	sessionKeyLoggedIn        = "user_logged_in"
	sessionKeySettings        = "user_settings"
	sessionKeyFailedLogins    = "failed-login-count"
	sessionKeyLastFailedLogin = "last-failed-login"
	sessionKeyFeedbackOK      = "feedback_positive"
	sessionKeyFeedbackFail    = "feedback_negative"
)

var userSessionKeys = []string{
	sessionKeyUserID,
	sessionKeyUserName,
	sessionKeyUserEmail,
	sessionKeyAccountType,
	sessionKeyAvatar,
	sessionKeyLoggedIn,
	sessionKeySettings,
}

// IsSessionValid reports whether the client is logged in and its session is
// still the one recorded for the user. A later login elsewhere, a logout or
// an admin action makes it stale.
func (e *Engine) IsSessionValid(ctx context.Context, c *Client) (bool, error) {
	if err := e.ready(c); err != nil {
		return false, err
	}
	uid, ok := c.UserID()
	if !ok {
		return false, nil
	}
	stored, err := e.users.SessionID(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("session id", err)
	}
	if stored == nil || *stored == "" {
		return false, nil
	}
	return *stored == c.Session.ID(), nil
}

// CheckAuthentication validates the client session and logs a stale client
// out locally. It returns 401 for anonymous and stale clients.
func (e *Engine) CheckAuthentication(ctx context.Context, c *Client) (*Result, error) {
	valid, err := e.IsSessionValid(ctx, c)
	if err != nil {
		return nil, err
	}
	r := NewResult()
	if valid {
		uid, _ := c.UserID()
		r.Set("user_id", uid).Set("user_name", c.UserName()).Set("account_type", c.AccountType().String())
		return r, nil
	}
	if !c.LoggedIn() {
		r.Fail(CodeUnauthorized, msgNotLoggedIn)
		return r, nil
	}

	uid, _ := c.UserID()
	e.metricInc(MetricSessionStale)
	e.emitAudit(ctx, auditEventSessionStale, false, uid, 0, c.sessionID(), "", nil)
	if _, err := e.logout(ctx, c); err != nil {
		return nil, err
	}
	r.Fail(CodeUnauthorized, msgSessionStale)
	return r, nil
}

// Logout ends the client session. The user's recorded session is cleared
// only when it is the client's own, so a stale client cannot log out a
// newer login. Calling Logout again is harmless.
func (e *Engine) Logout(ctx context.Context, c *Client) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	uid, cleared, err := e.logoutWithUser(ctx, c)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, uid, 0, "", "", func() map[string]string {
		return map[string]string{"cleared": strconv.FormatBool(cleared)}
	})
	return NewResult().Succeed(msgLogoutSuccess), nil
}

func (e *Engine) logout(ctx context.Context, c *Client) (bool, error) {
	_, cleared, err := e.logoutWithUser(ctx, c)
	return cleared, err
}

func (e *Engine) logoutWithUser(ctx context.Context, c *Client) (int64, bool, error) {
	sid := c.Session.ID()
	uid, loggedIn := c.UserID()

	var cleared bool
	if loggedIn && !c.Session.Destroyed() {
		n, err := e.users.ClearSession(ctx, uid, sid)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return uid, false, storeErr("clear session", err)
		}
		cleared = n == 1
	}

	e.deleteCookie(c, e.config.Cookie.RememberMeName)
	if err := e.sessions.Destroy(ctx, c.Session); err != nil {
		return uid, cleared, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return uid, cleared, nil
}

// establishSession moves the client to a fresh session id, then fills it
// with the user state and persists it.
func (e *Engine) establishSession(ctx context.Context, c *Client, u *User) error {
	if err := e.sessions.Regenerate(ctx, c.Session); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	c.Session.Delete(sessionKeyFailedLogins)
	c.Session.Delete(sessionKeyLastFailedLogin)

	if err := e.populateSession(ctx, c, u); err != nil {
		return err
	}
	if err := e.sessions.Save(ctx, c.Session); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return nil
}

func (e *Engine) populateSession(ctx context.Context, c *Client, u *User) error {
	rows, err := e.settings.Settings(ctx, u.ID)
	if err != nil {
		return storeErr("load settings", err)
	}
	snapshot := make(map[string]string, len(rows))
	for _, s := range rows {
		snapshot[s.Key] = s.Value
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	avatar := ""
	if u.HasAvatar {
		avatar = u.AvatarID
	}

	c.Session.Set(sessionKeyUserID, strconv.FormatInt(u.ID, 10))
	c.Session.Set(sessionKeyUserName, u.Name)
	c.Session.Set(sessionKeyUserEmail, u.Email)
	c.Session.Set(sessionKeyAccountType, u.AccountType.String())
	c.Session.Set(sessionKeyAvatar, avatar)
	c.Session.Set(sessionKeyLoggedIn, "1")
	c.Session.Set(sessionKeySettings, string(raw))
	return nil
}

// refreshSession reloads the user row into the session after a self edit.
func (e *Engine) refreshSession(ctx context.Context, c *Client, uid int64) error {
	u, err := e.users.FindByID(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		for _, k := range userSessionKeys {
			c.Session.Delete(k)
		}
		return nil
	}
	if err != nil {
		return storeErr("find user", err)
	}
	return e.populateSession(ctx, c, u)
}

// SessionSettings decodes the settings snapshot stored at login.
func (e *Engine) SessionSettings(c *Client) map[string]string {
	out := map[string]string{}
	raw := c.get(sessionKeySettings)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		e.logger.Warn("session settings snapshot unreadable", zap.String("session", c.sessionID()), zap.Error(err))
		return map[string]string{}
	}
	return out
}

// TakeFeedback returns and clears the queued positive and negative messages.
func (e *Engine) TakeFeedback(c *Client) (positive, negative []string) {
	if c == nil || c.Session == nil {
		return nil, nil
	}
	return c.Session.Take(sessionKeyFeedbackOK), c.Session.Take(sessionKeyFeedbackFail)
}

// finish queues the result message as session feedback when enabled.
func (e *Engine) finish(c *Client, r *Result) *Result {
	if !e.config.Session.Feedback || c == nil || c.Session == nil || c.Session.Destroyed() {
		return r
	}
	if r.Success {
		if r.Message != "" {
			c.Session.Add(sessionKeyFeedbackOK, r.Message)
		}
		return r
	}
	for _, fe := range r.Errors {
		c.Session.Add(sessionKeyFeedbackFail, fe.Message)
	}
	return r
}
