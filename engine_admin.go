package authkit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// adminTarget runs the checks shared by every admin mutation and loads the
// target row: form token, live administrator session, well-formed target id
// that is not the caller's own, existing target.
func (e *Engine) adminTarget(ctx context.Context, r *Result, c *Client, rawTarget, token string) (*User, error) {
	if ok, err := e.validateToken(ctx, r, c, ScopeAdmin, token); err != nil || !ok {
		return nil, err
	}
	if ok, err := e.validateAdminPermissions(ctx, r, c); err != nil || !ok {
		return nil, err
	}
	target, ok := validateUserID(r, rawTarget)
	if !ok {
		return nil, nil
	}
	self, _ := c.UserID()
	if !r.Check(target != self, CodeMethodNotAllowed, msgSelfTarget) {
		return nil, nil
	}

	u, err := e.users.FindByID(ctx, target)
	if errors.Is(err, ErrUserNotFound) {
		r.Fail(CodeBadRequest, msgUserNotFound)
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find target", err)
	}
	return u, nil
}

// kick ends the target's live session on its next check.
func (e *Engine) kick(ctx context.Context, target int64) {
	if err := e.users.SetSessionID(ctx, target, nil); err != nil {
		e.logger.Warn("clearing session of target failed", zap.Int64("user_id", target), zap.Error(err))
	}
}

func (e *Engine) adminDone(ctx context.Context, c *Client, r *Result, event string, target int64, n int64, meta func() map[string]string) *Result {
	admin, _ := c.UserID()
	if n != 1 {
		e.emitAudit(ctx, event, false, admin, target, c.sessionID(), auditReasonPersistence, meta)
		r.Fail(CodeInternal, msgPersistenceFailed)
		return e.finish(c, r)
	}
	e.metricInc(MetricAdminAction)
	e.emitAudit(ctx, event, true, admin, target, c.sessionID(), "", meta)
	return e.finish(c, r)
}

// UpdateSuspensionStatus suspends the target for days days from now, or
// lifts the suspension when days <= 0.
func (e *Engine) UpdateSuspensionStatus(ctx context.Context, c *Client, targetID string, days int, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	u, err := e.adminTarget(ctx, r, c, targetID, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return e.finish(c, r), nil
	}

	var until *time.Time
	if days > 0 {
		t := e.now().Add(time.Duration(days) * 24 * time.Hour)
		until = &t
	}
	n, err := e.users.SetSuspension(ctx, u.ID, until)
	if err != nil {
		return nil, storeErr("set suspension", err)
	}
	if n == 1 {
		e.kick(ctx, u.ID)
		if until != nil {
			r.Succeed("the user has been suspended")
		} else {
			r.Succeed("the suspension has been lifted")
		}
	}
	return e.adminDone(ctx, c, r, auditEventSuspensionChange, u.ID, n, func() map[string]string {
		return map[string]string{"days": strconv.Itoa(days)}
	}), nil
}

// SoftDeleteUser flags the target as deleted. The row is kept.
func (e *Engine) SoftDeleteUser(ctx context.Context, c *Client, targetID, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	u, err := e.adminTarget(ctx, r, c, targetID, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return e.finish(c, r), nil
	}

	now := e.now()
	n, err := e.users.SetDeleted(ctx, u.ID, true, &now)
	if err != nil {
		return nil, storeErr("soft delete", err)
	}
	if n == 1 {
		e.kick(ctx, u.ID)
		r.Succeed("the user has been deleted")
	}
	return e.adminDone(ctx, c, r, auditEventSoftDelete, u.ID, n, nil), nil
}

// RestoreUser clears the deleted flag and timestamp.
func (e *Engine) RestoreUser(ctx context.Context, c *Client, targetID, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	u, err := e.adminTarget(ctx, r, c, targetID, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return e.finish(c, r), nil
	}

	n, err := e.users.SetDeleted(ctx, u.ID, false, nil)
	if err != nil {
		return nil, storeErr("restore", err)
	}
	if n == 1 {
		e.kick(ctx, u.ID)
		r.Succeed("the user has been restored")
	}
	return e.adminDone(ctx, c, r, auditEventRestore, u.ID, n, nil), nil
}

// HardDeleteUser removes the target row and its settings.
func (e *Engine) HardDeleteUser(ctx context.Context, c *Client, targetID, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	u, err := e.adminTarget(ctx, r, c, targetID, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return e.finish(c, r), nil
	}

	n, err := e.users.Delete(ctx, u.ID)
	if err != nil {
		return nil, storeErr("hard delete", err)
	}
	if n == 1 {
		r.Succeed("the user has been removed permanently")
	}
	return e.adminDone(ctx, c, r, auditEventHardDelete, u.ID, n, nil), nil
}

// ChangeAccountType sets the privilege level of the target.
func (e *Engine) ChangeAccountType(ctx context.Context, c *Client, targetID string, t AccountType, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	u, err := e.adminTarget(ctx, r, c, targetID, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return e.finish(c, r), nil
	}
	if !r.Check(t.Valid(), CodeBadRequest, msgAccountTypeInvalid) {
		return e.finish(c, r), nil
	}

	n, err := e.users.SetAccountType(ctx, u.ID, t)
	if err != nil {
		return nil, storeErr("set account type", err)
	}
	if n == 1 {
		e.kick(ctx, u.ID)
		r.Succeed("the account type has been changed")
	}
	return e.adminDone(ctx, c, r, auditEventAccountTypeChange, u.ID, n, func() map[string]string {
		return map[string]string{"from": u.AccountType.String(), "to": t.String()}
	}), nil
}

// CreateUser creates an activated account directly.
func (e *Engine) CreateUser(ctx context.Context, c *Client, in AdminCreateInput, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if ok, err := e.validateToken(ctx, r, c, ScopeAdmin, token); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateAdminPermissions(ctx, r, c); err != nil {
		return nil, err
	} else if !ok || !validateName(r, in.Name) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateNameConflict(ctx, r, in.Name); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if !validateEmail(r, in.Email) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateEmailConflict(ctx, r, in.Email); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if !e.validatePasswordRules(r, in.Password, in.Password) ||
		!r.Check(in.AccountType.Valid(), CodeBadRequest, msgAccountTypeInvalid) {
		return e.finish(c, r), nil
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	_, err = e.users.Insert(ctx, NewUser{
		Name:         in.Name,
		NiceName:     in.Name,
		Email:        in.Email,
		PasswordHash: &hash,
		Status:       StatusActivated,
		AccountType:  in.AccountType,
		CreatedAt:    e.now(),
	})
	if errors.Is(err, ErrDuplicateUser) {
		r.Fail(CodeConflict, msgNameTaken)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("insert user", err)
	}
	u, err := e.users.FindByName(ctx, in.Name)
	if err != nil {
		return nil, storeErr("find new user", err)
	}
	if err := e.applyDefaults(ctx, u.ID); err != nil {
		e.rollbackUser(ctx, u.ID)
		return nil, err
	}

	r.Succeed("the user has been created")
	r.Set("user_id", u.ID)
	return e.adminDone(ctx, c, r, auditEventAdminCreate, u.ID, 1, nil), nil
}

// ListUsers returns public profiles, ordered by id, to administrators.
func (e *Engine) ListUsers(ctx context.Context, c *Client, offset, limit int) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if ok, err := e.validateAdminPermissions(ctx, r, c); err != nil {
		return nil, err
	} else if !ok {
		return r, nil
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	users, err := e.users.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	profiles := make([]Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].profile())
	}
	r.Set("users", profiles)
	return r, nil
}
