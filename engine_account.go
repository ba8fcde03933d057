package authkit

import (
	"context"
	"errors"
)

// selfService runs the checks shared by the account edits: form token and a
// valid, current session.
func (e *Engine) selfService(ctx context.Context, r *Result, c *Client, token string) (int64, error) {
	if ok, err := e.validateToken(ctx, r, c, ScopeAccount, token); err != nil || !ok {
		return 0, err
	}
	if ok, err := e.validateLiveSession(ctx, r, c); err != nil || !ok {
		return 0, err
	}
	uid, _ := c.UserID()
	return uid, nil
}

func (e *Engine) accountDone(ctx context.Context, c *Client, r *Result, uid int64, n int64, field string) (*Result, error) {
	if !r.Check(n == 1, CodeInternal, msgPersistenceFailed) {
		return e.finish(c, r), nil
	}
	if err := e.refreshSession(ctx, c, uid); err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditEventAccountChange, true, uid, 0, c.sessionID(), "", func() map[string]string {
		return map[string]string{"field": field}
	})
	return e.finish(c, r), nil
}

// EditUserName renames the caller.
func (e *Engine) EditUserName(ctx context.Context, c *Client, name, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	uid, err := e.selfService(ctx, r, c, token)
	if err != nil {
		return nil, err
	}
	if uid == 0 || !validateName(r, name) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateNameConflict(ctx, r, name); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}

	n, err := e.users.UpdateName(ctx, uid, name)
	if errors.Is(err, ErrDuplicateUser) {
		r.Fail(CodeConflict, msgNameTaken)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("update name", err)
	}
	r.Succeed("your user name has been changed")
	return e.accountDone(ctx, c, r, uid, n, "name")
}

// EditUserEmail changes the caller's email address.
func (e *Engine) EditUserEmail(ctx context.Context, c *Client, email, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	uid, err := e.selfService(ctx, r, c, token)
	if err != nil {
		return nil, err
	}
	if uid == 0 || !validateEmail(r, email) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateEmailConflict(ctx, r, email); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}

	n, err := e.users.UpdateEmail(ctx, uid, email)
	if errors.Is(err, ErrDuplicateUser) {
		r.Fail(CodeConflict, msgEmailTaken)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("update email", err)
	}
	r.Succeed("your email address has been changed")
	return e.accountDone(ctx, c, r, uid, n, "email")
}

// ChangePassword replaces the caller's password after checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, c *Client, in PasswordChangeInput, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	uid, err := e.selfService(ctx, r, c, token)
	if err != nil {
		return nil, err
	}
	if uid == 0 {
		return e.finish(c, r), nil
	}

	u, err := e.users.FindByID(ctx, uid)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if !r.Check(e.verifyPassword(u, in.Current), CodeBadRequest, msgPasswordWrong) {
		return e.finish(c, r), nil
	}
	if !e.validatePasswordRules(r, in.Password, in.PasswordRepeat) {
		return e.finish(c, r), nil
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	if err := e.users.UpdatePasswordHash(ctx, uid, hash); err != nil {
		return nil, storeErr("update password", err)
	}
	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, auditEventPasswordChange, true, uid, 0, c.sessionID(), "", nil)
	return e.finish(c, r.Succeed("your password has been changed")), nil
}

// SetAvatar records that the caller has an avatar stored under avatarID.
// Storing the image itself is up to the application.
func (e *Engine) SetAvatar(ctx context.Context, c *Client, avatarID, token string) (*Result, error) {
	return e.editAvatar(ctx, c, true, avatarID, token)
}

// DeleteAvatar clears the caller's avatar marker.
func (e *Engine) DeleteAvatar(ctx context.Context, c *Client, token string) (*Result, error) {
	return e.editAvatar(ctx, c, false, "", token)
}

func (e *Engine) editAvatar(ctx context.Context, c *Client, has bool, avatarID, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	uid, err := e.selfService(ctx, r, c, token)
	if err != nil {
		return nil, err
	}
	if uid == 0 || (has && !r.Check(avatarID != "", CodeBadRequest, msgAvatarEmpty)) {
		return e.finish(c, r), nil
	}

	n, err := e.users.SetAvatar(ctx, uid, has, avatarID)
	if err != nil {
		return nil, storeErr("set avatar", err)
	}
	if has {
		r.Succeed("your avatar has been saved")
	} else {
		r.Succeed("your avatar has been removed")
	}
	return e.accountDone(ctx, c, r, uid, n, "avatar")
}
