package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrEthical07/authkit/csrf"
	"github.com/MrEthical07/authkit/internal/rate"
	"go.uber.org/zap"
)

// Token scopes.
const (
	ScopeLogin    = "login"
	ScopeRegister = "register"
	ScopeRecovery = "recovery"
	ScopeInvite   = "invite"
	ScopeAdmin    = "admin"
	ScopeSettings = "settings"
	ScopeAccount  = "account"
)

const maxEmailLength = 254

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]{2,64}$`)

// User-facing messages.
const (
	msgInvalidToken        = "the form has expired, please reload the page and try again"
	msgLoginRequired       = "you must be logged in to do this"
	msgAdminRequired       = "only administrators can do this"
	msgForbidden           = "you are not allowed to do this"
	msgInvalidUserID       = "invalid user id"
	msgSelfTarget          = "you cannot do this to your own account"
	msgUserNotFound        = "this user does not exist"
	msgFieldsEmpty         = "user name and password must not be empty"
	msgCredentials         = "user name or password incorrect"
	msgTooManyFailures     = "too many failed login attempts, please wait 30 seconds and try again"
	msgAccountDeleted      = "this account has been deleted"
	msgAccountSuspended    = "this account is suspended for another %d hours and %d minutes"
	msgAccountInactive     = "this account has not been activated yet, please check your email"
	msgCookieInvalid       = "invalid remember-me cookie"
	msgCaptcha             = "the captcha answer was wrong"
	msgNamePattern         = "user name must be 2 to 64 letters or digits"
	msgNameTaken           = "this user name is already taken"
	msgEmailInvalid        = "this email address is not valid"
	msgEmailTaken          = "this email address is already registered"
	msgEmailRepeat         = "the email addresses do not match"
	msgPasswordShort       = "password must be at least %d characters long"
	msgPasswordRepeat      = "the passwords do not match"
	msgPasswordWrong       = "the current password is wrong"
	msgTooManyRequests     = "too many requests, please try again later"
	msgRegistrationOff     = "registration is disabled"
	msgInvitationOff       = "invitations are disabled"
	msgMailFailed          = "the email could not be sent, please try again later"
	msgActivationFailed    = "activation failed, the link is invalid or was already used"
	msgInvalidLink         = "this link is invalid"
	msgLinkExpired         = "this link has expired, please request a new one"
	msgResetFailed         = "the password could not be changed, the link is invalid or has expired"
	msgCompletionFailed    = "registration could not be completed"
	msgPersistenceFailed   = "the change could not be saved"
	msgIdentifierEmpty     = "please enter your user name or email address"
	msgSettingKeyEmpty     = "setting key must not be empty"
	msgSettingUnknown      = "this setting does not exist"
	msgAccountTypeInvalid  = "invalid account type"
	msgAvatarEmpty         = "avatar id must not be empty"
	msgNotLoggedIn         = "you are not logged in"
	msgSessionStale        = "your session has expired because you logged in somewhere else"
	msgLoginSuccess        = "you are now logged in"
	msgLogoutSuccess       = "you are now logged out"
	msgRecoveryRequested   = "if the account exists, a password reset link has been sent"
	msgRegistrationSuccess = "your account has been created, please check your email to activate it"
)

func (e *Engine) validateToken(ctx context.Context, r *Result, c *Client, scope, token string) (bool, error) {
	err := e.tokens.Validate(ctx, c.sessionID(), scope, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, csrf.ErrTokenInvalid), errors.Is(err, csrf.ErrTokenReplayed):
		e.metricInc(MetricTokenRejected)
		return r.Check(false, CodeMethodNotAllowed, msgInvalidToken), nil
	default:
		return false, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
}

// validateLiveSession requires a logged-in client whose session id is still
// the one stored on its user row.
func (e *Engine) validateLiveSession(ctx context.Context, r *Result, c *Client) (bool, error) {
	if !r.Check(c.LoggedIn(), CodeUnauthorized, msgLoginRequired) {
		return false, nil
	}
	valid, err := e.IsSessionValid(ctx, c)
	if err != nil {
		return false, err
	}
	return r.Check(valid, CodeUnauthorized, msgLoginRequired), nil
}

// validateAdminPermissions requires a live administrator session.
func (e *Engine) validateAdminPermissions(ctx context.Context, r *Result, c *Client) (bool, error) {
	if ok, err := e.validateLiveSession(ctx, r, c); err != nil || !ok {
		return false, err
	}
	return r.Check(c.IsAdmin(), CodeForbidden, msgAdminRequired), nil
}

// validateUserID parses a positive decimal id.
func validateUserID(r *Result, raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if !r.Check(err == nil && id > 0, CodeMethodNotAllowed, msgInvalidUserID) {
		return 0, false
	}
	return id, true
}

// validatePasswordRules runs both the length and the repeat check.
func (e *Engine) validatePasswordRules(r *Result, password, repeat string) bool {
	ok := r.Check(len(password) >= e.config.Password.MinLength, CodeBadRequest,
		fmt.Sprintf(msgPasswordShort, e.config.Password.MinLength))
	return r.Check(password == repeat, CodeBadRequest, msgPasswordRepeat) && ok
}

func validateName(r *Result, name string) bool {
	return r.Check(namePattern.MatchString(name), CodeBadRequest, msgNamePattern)
}

func (e *Engine) validateNameConflict(ctx context.Context, r *Result, name string) (bool, error) {
	exists, err := e.users.NameExists(ctx, name)
	if err != nil {
		return false, storeErr("name exists", err)
	}
	return r.Check(!exists, CodeConflict, msgNameTaken), nil
}

func validateEmail(r *Result, email string) bool {
	return r.Check(isEmail(email), CodeBadRequest, msgEmailInvalid)
}

func (e *Engine) validateEmailConflict(ctx context.Context, r *Result, email string) (bool, error) {
	exists, err := e.users.EmailExists(ctx, email)
	if err != nil {
		return false, storeErr("email exists", err)
	}
	return r.Check(!exists, CodeConflict, msgEmailTaken), nil
}

func (e *Engine) validateCaptcha(ctx context.Context, r *Result, c *Client, scope, answer string) bool {
	return r.Check(e.captcha.Validate(ctx, c.Session, scope, answer), CodeBadRequest, msgCaptcha)
}

// validateThrottle counts one mail-sending request of the client IP.
func (e *Engine) validateThrottle(ctx context.Context, r *Result, action string) (bool, error) {
	if e.throttle == nil {
		return true, nil
	}
	err := e.throttle.Hit(ctx, action, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, action)
		return r.Check(false, CodeBadRequest, msgTooManyRequests), nil
	default:
		return false, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
}

// clearThrottle forgets the client IP's requests for action once the mail it
// asked for has been used.
func (e *Engine) clearThrottle(ctx context.Context, action string) {
	ip := clientIPFromContext(ctx)
	if e.throttle == nil || ip == "" {
		return
	}
	if err := e.throttle.Reset(ctx, action, ip); err != nil {
		e.logger.Warn("clearing throttle failed", zap.String("action", action), zap.Error(err))
	}
}

// isEmail accepts a bare addr-spec no longer than 254 bytes.
func isEmail(s string) bool {
	if s == "" || len(s) > maxEmailLength || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}
