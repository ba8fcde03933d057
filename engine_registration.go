package authkit

import (
	"context"
	"errors"

	"github.com/MrEthical07/authkit/internal"
)

// Register creates a pending account and mails its activation link.
//
// All input checks run and every failure is reported, so a form can show
// each problem at once. When the mail cannot be sent the account is removed
// again and 500 is returned.
func (e *Engine) Register(ctx context.Context, c *Client, in RegistrationInput) (*Result, error) {
	if err := e.ready(c); err != nil {
		return nil, err
	}
	r := NewResult()
	if !r.Check(e.config.Registration.Enabled, CodeForbidden, msgRegistrationOff) {
		return e.finish(c, r), nil
	}
	if ok, err := e.validateThrottle(ctx, r, ScopeRegister); err != nil {
		return nil, err
	} else if !ok {
		return e.finish(c, r), nil
	}

	if e.config.Registration.RequireCaptcha {
		e.validateCaptcha(ctx, r, c, ScopeRegister, in.Captcha)
	}
	if validateName(r, in.Name) {
		if _, err := e.validateNameConflict(ctx, r, in.Name); err != nil {
			return nil, err
		}
	}
	if validateEmail(r, in.Email) {
		if _, err := e.validateEmailConflict(ctx, r, in.Email); err != nil {
			return nil, err
		}
	}
	r.Check(in.Email == in.EmailRepeat, CodeBadRequest, msgEmailRepeat)
	e.validatePasswordRules(r, in.Password, in.PasswordRepeat)

	if r.Failed() {
		e.metricInc(MetricRegistrationFailure)
		return e.finish(c, r), nil
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	activation, err := internal.NewLinkHash()
	if err != nil {
		return nil, err
	}

	_, err = e.users.Insert(ctx, NewUser{
		Name:           in.Name,
		NiceName:       in.Name,
		Email:          in.Email,
		PasswordHash:   &hash,
		ActivationHash: &activation,
		Status:         StatusPending,
		AccountType:    AccountNormal,
		CreatedAt:      e.now(),
	})
	if errors.Is(err, ErrDuplicateUser) {
		e.metricInc(MetricRegistrationFailure)
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

	link := linkTo(e.config.Registration.VerificationURL, formatID(u.ID), activation)
	if err := e.sendMail(ctx, u.Email, e.config.Registration.Mail, link, u.Name); err != nil {
		e.rollbackUser(ctx, u.ID)
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistration, false, u.ID, 0, c.sessionID(), auditReasonMail, nil)
		r.Fail(CodeInternal, msgMailFailed)
		return e.finish(c, r), nil
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistration, true, u.ID, 0, c.sessionID(), "", nil)

	r.Succeed(msgRegistrationSuccess)
	r.Set("user_id", u.ID)
	return e.finish(c, r), nil
}

// VerifyRegisteredUser activates a self-registered account from its
// activation link. Exactly one row must change.
func (e *Engine) VerifyRegisteredUser(ctx context.Context, rawID, hash string) (*Result, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	r := NewResult()
	id, ok := validateUserID(r, rawID)
	if !ok {
		return r, nil
	}

	n := int64(0)
	if hash != "" {
		var err error
		n, err = e.users.ActivateRegistered(ctx, id, hash)
		if err != nil {
			return nil, storeErr("activate user", err)
		}
	}
	if n != 1 {
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivation, false, id, 0, "", auditReasonInvalidLink, nil)
		r.Fail(CodeInternal, msgActivationFailed)
		return r, nil
	}

	e.metricInc(MetricActivationSuccess)
	e.emitAudit(ctx, auditEventActivation, true, id, 0, "", "", nil)
	r.Succeed("your account is now active, you can log in")
	return r, nil
}
