package authkit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"go.uber.org/zap"
)

// Login authenticates with a user name or email and a password.
//
// The checks run in order and stop at the first failure: form token, empty
// fields, failures of this session against unknown users, lookup, failures
// recorded on the user row, password, account state. On success the session
// id is regenerated before any user state is written, the user row records
// the new session id, and with RememberMe a fresh remember-me cookie is set.
func (e *Engine) Login(ctx context.Context, c *Client, in LoginInput) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	start := e.now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
	}()

	r := NewResult()
	ok, err := e.validateToken(ctx, r, c, ScopeLogin, in.Token)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.loginFailed(ctx, c, 0, auditReasonInvalidToken)
		return e.finish(c, r), nil
	}
	if !r.Check(in.Identifier != "" && in.Password != "", CodeBadRequest, msgFieldsEmpty) {
		return e.finish(c, r), nil
	}

	now := e.now()
	if e.sessionFailuresExceeded(c, now) {
		e.loginRateLimited(ctx, c, 0)
		r.Fail(CodeBadRequest, msgTooManyFailures)
		return e.finish(c, r), nil
	}

	u, err := e.users.FindByNameOrEmail(ctx, in.Identifier)
	if errors.Is(err, ErrUserNotFound) {
		e.bumpSessionFailures(c, now)
		e.loginFailed(ctx, c, 0, auditReasonInvalidCredentials)
		r.Fail(CodeBadRequest, msgCredentials)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("find user", err)
	}

	if e.rowFailuresExceeded(u, now) {
		e.loginRateLimited(ctx, c, u.ID)
		r.Fail(CodeBadRequest, msgTooManyFailures)
		return e.finish(c, r), nil
	}

	if !e.verifyPassword(u, in.Password) {
		if err := e.users.RecordFailedLogin(ctx, u.ID, now); err != nil {
			return nil, storeErr("record failed login", err)
		}
		e.loginFailed(ctx, c, u.ID, auditReasonInvalidCredentials)
		r.Fail(CodeBadRequest, msgCredentials)
		return e.finish(c, r), nil
	}

	if reason, ok := e.checkAccountState(r, u, now); !ok {
		e.loginFailed(ctx, c, u.ID, reason)
		return e.finish(c, r), nil
	}

	var remember *string
	if in.RememberMe {
		token, err := internal.NewRememberToken()
		if err != nil {
			return nil, err
		}
		remember = &token
	}

	if err := e.establishSession(ctx, c, u); err != nil {
		return nil, err
	}
	if err := e.users.RecordLogin(ctx, u.ID, c.Session.ID(), remember, now); err != nil {
		return nil, storeErr("record login", err)
	}
	// the cookie is only handed out once its token is on the row
	if remember != nil {
		if err := e.writeRememberCookie(c, u.ID, *remember); err != nil {
			return nil, err
		}
	}

	if e.config.Password.UpgradeOnLogin && u.PasswordHash != nil && e.hasher.NeedsRehash(*u.PasswordHash) {
		e.upgradePasswordHash(ctx, u.ID, in.Password)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, u.ID, 0, c.Session.ID(), "", func() map[string]string {
		return map[string]string{"remember_me": strconv.FormatBool(in.RememberMe)}
	})

	r.Succeed(msgLoginSuccess)
	r.Set("user", u.profile())
	return e.finish(c, r), nil
}

// LoginWithCookie logs the client in from its remember-me cookie. Every
// failure returns the same message and deletes the cookie. The remember-me
// token is kept as is.
func (e *Engine) LoginWithCookie(ctx context.Context, c *Client) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()

	fail := func(uid int64, reason string) (*Result, error) {
		e.deleteCookie(c, e.config.Cookie.RememberMeName)
		e.metricInc(MetricCookieLoginFailure)
		e.emitAudit(ctx, auditEventCookieLoginFailure, false, uid, 0, c.sessionID(), reason, nil)
		r.Fail(CodeBadRequest, msgCookieInvalid)
		return e.finish(c, r), nil
	}

	uid, token, ok := e.readRememberCookie(c)
	if !ok {
		return fail(0, auditReasonInvalidCookie)
	}

	u, err := e.users.FindByRememberToken(ctx, uid, token)
	if errors.Is(err, ErrUserNotFound) {
		return fail(uid, auditReasonInvalidCookie)
	}
	if err != nil {
		return nil, storeErr("find by remember token", err)
	}

	now := e.now()
	if reason, ok := e.checkAccountState(NewResult(), u, now); !ok {
		return fail(u.ID, reason)
	}

	if err := e.establishSession(ctx, c, u); err != nil {
		return nil, err
	}
	if err := e.users.RecordLogin(ctx, u.ID, c.Session.ID(), nil, now); err != nil {
		return nil, storeErr("record login", err)
	}

	e.metricInc(MetricCookieLoginSuccess)
	e.emitAudit(ctx, auditEventCookieLoginSuccess, true, u.ID, 0, c.Session.ID(), "", nil)

	r.Succeed(msgLoginSuccess)
	r.Set("user", u.profile())
	return e.finish(c, r), nil
}

func (e *Engine) verifyPassword(u *User, password string) bool {
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return false
	}
	ok, err := e.hasher.Verify(password, *u.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password hash unreadable", zap.Int64("user_id", u.ID), zap.Error(err))
		return false
	}
	return ok
}

// checkAccountState refuses deleted, suspended and inactive accounts.
func (e *Engine) checkAccountState(r *Result, u *User, now time.Time) (string, bool) {
	if !r.Check(!u.Deleted, CodeBadRequest, msgAccountDeleted) {
		return auditReasonAccountDeleted, false
	}
	if remaining, suspended := u.SuspendedAt(now); suspended {
		hours := int(remaining / time.Hour)
		minutes := int((remaining % time.Hour) / time.Minute)
		r.Fail(CodeBadRequest, fmt.Sprintf(msgAccountSuspended, hours, minutes))
		return auditReasonAccountSuspended, false
	}
	if !r.Check(u.Activated(), CodeBadRequest, msgAccountInactive) {
		return auditReasonAccountInactive, false
	}
	return "", true
}

func (e *Engine) upgradePasswordHash(ctx context.Context, uid int64, password string) {
	hash, err := e.hasher.Hash(password)
	if err == nil {
		err = e.users.UpdatePasswordHash(ctx, uid, hash)
	}
	if err != nil {
		e.logger.Warn("password hash upgrade failed", zap.Int64("user_id", uid), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, auditEventPasswordHashUpgraded, true, uid, 0, "", "", nil)
}

/*
====================================
FAILED LOGIN COUNTERS
====================================
*/

// The session counter tracks attempts against unknown users; the row
// counter tracks wrong passwords of an existing user.

func (e *Engine) sessionFailuresExceeded(c *Client, now time.Time) bool {
	count, _ := strconv.Atoi(c.get(sessionKeyFailedLogins))
	if count < e.config.Login.MaxFailedAttempts {
		return false
	}
	last, err := strconv.ParseInt(c.get(sessionKeyLastFailedLogin), 10, 64)
	if err != nil {
		return false
	}
	return now.Sub(time.Unix(last, 0)) < e.config.Login.FailureWindow
}

func (e *Engine) bumpSessionFailures(c *Client, now time.Time) {
	count, _ := strconv.Atoi(c.get(sessionKeyFailedLogins))
	c.Session.Set(sessionKeyFailedLogins, strconv.Itoa(count+1))
	c.Session.Set(sessionKeyLastFailedLogin, strconv.FormatInt(now.Unix(), 10))
}

func (e *Engine) rowFailuresExceeded(u *User, now time.Time) bool {
	if u.FailedLogins < e.config.Login.MaxFailedAttempts || u.LastFailedLogin == nil {
		return false
	}
	return now.Sub(*u.LastFailedLogin) < e.config.Login.FailureWindow
}

func (e *Engine) loginFailed(ctx context.Context, c *Client, uid int64, reason string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, uid, 0, c.sessionID(), reason, nil)
}

func (e *Engine) loginRateLimited(ctx context.Context, c *Client, uid int64) {
	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, uid, 0, c.sessionID(), auditReasonRateLimited, nil)
}
