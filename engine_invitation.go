package authkit

import (
	"context"
	"errors"

	"github.com/MrEthical07/authkit/internal"
	"github.com/segmentio/ksuid"
)

const invitedNamePrefix = "inv"

// InviteUser creates a passwordless pending account for email and mails
// the invitation link. The account gets a unique placeholder name which the
// invitee replaces in CompleteRegistration.
func (e *Engine) InviteUser(ctx context.Context, c *Client, email, token string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if !r.Check(e.config.Invitation.Enabled, CodeForbidden, msgInvitationOff) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateToken(ctx, r, c, ScopeInvite, token); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateAdminPermissions(ctx, r, c); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateThrottle(ctx, r, ScopeInvite); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}
	if !validateEmail(r, email) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateEmailConflict(ctx, r, email); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}

	activation, err := internal.NewLinkHash()
	if err != nil {
		return nil, err
	}
	placeholder := invitedNamePrefix + ksuid.New().String()

	_, err = e.users.Insert(ctx, NewUser{
		Name:           placeholder,
		NiceName:       placeholder,
		Email:          email,
		ActivationHash: &activation,
		Status:         StatusPending,
		AccountType:    AccountNormal,
		CreatedAt:      e.now(),
	})
	if errors.Is(err, ErrDuplicateUser) {
		r.Fail(CodeConflict, msgEmailTaken)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("insert invited user", err)
	}

	u, err := e.users.FindByName(ctx, placeholder)
	if err != nil {
		return nil, storeErr("find invited user", err)
	}

	adminID, _ := c.UserID()
	link := linkTo(e.config.Invitation.CompletionURL, formatID(u.ID), activation)
	if err := e.sendMail(ctx, email, e.config.Invitation.Mail, link, ""); err != nil {
		e.rollbackUser(ctx, u.ID)
		e.emitAudit(ctx, auditEventInvitationSent, false, adminID, u.ID, c.sessionID(), auditReasonMail, nil)
		r.Fail(CodeInternal, msgMailFailed)
		return e.finish(c, r), nil
	}

	e.metricInc(MetricInvitationSent)
	e.emitAudit(ctx, auditEventInvitationSent, true, adminID, u.ID, c.sessionID(), "", nil)

	r.Succeed("the invitation has been sent")
	r.Set("user_id", u.ID)
	return e.finish(c, r), nil
}

// VerifyInvitedUser reports whether the invitation link is still open.
// It changes nothing.
func (e *Engine) VerifyInvitedUser(ctx context.Context, rawID, hash string) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	r := NewResult()
	id, ok := validateUserID(r, rawID)
	if !ok {
		return r, nil
	}
	open, err := e.invitationOpen(ctx, id, hash)
	if err != nil {
		return nil, err
	}
	r.Check(open, CodeBadRequest, msgInvalidLink)
	return r, nil
}

// CompleteRegistration turns an invitation into an active account with the
// chosen name and password.
func (e *Engine) CompleteRegistration(ctx context.Context, in CompletionInput) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	r := NewResult()
	id, ok := validateUserID(r, in.UserID)
	if !ok {
		return r, nil
	}
	if !validateName(r, in.Name) {
		return r, nil
	}
	if ok, err := e.validateNameConflict(ctx, r, in.Name); err != nil {
		return nil, err
	} else if !ok {
		return r, nil
	}
	if !e.validatePasswordRules(r, in.Password, in.PasswordRepeat) {
		return r, nil
	}

	open, err := e.invitationOpen(ctx, id, in.Hash)
	if err != nil {
		return nil, err
	}
	if !r.Check(open, CodeBadRequest, msgInvalidLink) {
		return r, nil
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	n, err := e.users.CompleteInvitation(ctx, id, in.Hash, in.Name, hash)
	if errors.Is(err, ErrDuplicateUser) {
		r.Fail(CodeConflict, msgNameTaken)
		return r, nil
	}
	if err != nil {
		return nil, storeErr("complete invitation", err)
	}
	if n != 1 {
		r.Fail(CodeInternal, msgCompletionFailed)
		return r, nil
	}
	if err := e.applyDefaults(ctx, id); err != nil {
		return nil, err
	}

	e.metricInc(MetricInvitationCompleted)
	e.emitAudit(ctx, auditEventInvitationCompleted, true, id, 0, "", "", nil)
	r.Succeed("your account is now active, you can log in")
	return r, nil
}

func (e *Engine) invitationOpen(ctx context.Context, id int64, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	n, err := e.users.CountInvitation(ctx, id, hash)
	if err != nil {
		return false, storeErr("count invitation", err)
	}
	return n == 1, nil
}
