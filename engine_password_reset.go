package authkit

import (
	"context"
	"errors"

	"github.com/MrEthical07/authkit/internal"
)

// RequestPasswordRecovery mails a reset link when identifier names an
// account. The reply is the same whether or not the account exists, and a
// failed delivery is only logged.
func (e *Engine) RequestPasswordRecovery(ctx context.Context, c *Client, identifier, captchaAnswer string) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if e.config.Recovery.RequireCaptcha && !e.validateCaptcha(ctx, r, c, ScopeRecovery, captchaAnswer) {
		return e.finish(c, r), nil
	}
	if !r.Check(identifier != "", CodeBadRequest, msgIdentifierEmpty) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateThrottle(ctx, r, ScopeRecovery); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}

	e.metricInc(MetricRecoveryRequest)
	r.Succeed(msgRecoveryRequested)

	u, err := e.users.FindByNameOrEmail(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventRecoveryRequest, false, 0, 0, c.sessionID(), auditReasonInvalidCredentials, nil)
		return e.finish(c, r), nil
	}
	if err != nil {
		return nil, storeErr("find user", err)
	}

	hash, err := internal.NewLinkHash()
	if err != nil {
		return nil, err
	}
	if err := e.users.SetResetHash(ctx, u.ID, hash, e.now().Add(e.config.Recovery.ResetTTL)); err != nil {
		return nil, storeErr("set reset hash", err)
	}

	link := linkTo(e.config.Recovery.ResetURL, u.Name, hash)
	if err := e.sendMail(ctx, u.Email, e.config.Recovery.Mail, link, u.Name); err != nil {
		e.emitAudit(ctx, auditEventRecoveryRequest, false, u.ID, 0, c.sessionID(), auditReasonMail, nil)
		return e.finish(c, r), nil
	}

	e.emitAudit(ctx, auditEventRecoveryRequest, true, u.ID, 0, c.sessionID(), "", nil)
	return e.finish(c, r), nil
}

// VerifyPasswordResetLink checks a reset link without using it. An unknown
// link and an expired one get different messages.
func (e *Engine) VerifyPasswordResetLink(ctx context.Context, name, hash string) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	r := NewResult()
	if !r.Check(name != "" && hash != "", CodeBadRequest, msgInvalidLink) {
		return r, nil
	}

	u, err := e.users.FindByResetHash(ctx, name, hash)
	if errors.Is(err, ErrUserNotFound) {
		r.Fail(CodeBadRequest, msgInvalidLink)
		return r, nil
	}
	if err != nil {
		return nil, storeErr("find by reset hash", err)
	}
	expired := u.ResetExpiresAt == nil || e.now().After(*u.ResetExpiresAt)
	r.Check(!expired, CodeBadRequest, msgLinkExpired)
	return r, nil
}

// ResetPassword sets a new password from a reset link. The update only
// applies while the link is valid and unexpired, and consumes it.
func (e *Engine) ResetPassword(ctx context.Context, in PasswordResetInput) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	r := NewResult()
	if !r.Check(in.Name != "" && in.Hash != "", CodeBadRequest, msgInvalidLink) {
		return r, nil
	}
	if !e.validatePasswordRules(r, in.Password, in.PasswordRepeat) {
		return r, nil
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	n, err := e.users.ResetPassword(ctx, in.Name, in.Hash, hash, e.now())
	if err != nil {
		return nil, storeErr("reset password", err)
	}
	if n != 1 {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordReset, false, 0, 0, "", auditReasonInvalidLink, func() map[string]string {
			return map[string]string{"name": in.Name}
		})
		r.Fail(CodeInternal, msgResetFailed)
		return r, nil
	}

	e.clearThrottle(ctx, ScopeRecovery)
	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordReset, true, 0, 0, "", "", func() map[string]string {
		return map[string]string{"name": in.Name}
	})
	r.Succeed("your password has been changed, you can log in")
	return r, nil
}
