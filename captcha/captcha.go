// Package captcha issues and checks session-bound challenge codes.
//
// Rendering the code (image, audio) is left to the caller; this package only
// keeps the expected answer in the server-side session under a scope so that
// a registration captcha cannot be replayed on the recovery form.
package captcha

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/session"
)

const keyPrefix = "captcha:"

// SessionValidator stores one pending answer per scope in the session.
// Every validation attempt consumes the pending answer.
type SessionValidator struct {
	length int
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionValidator returns a validator issuing codes of length characters
// that expire after ttl.
func NewSessionValidator(length int, ttl time.Duration) (*SessionValidator, error) {
	if length < 4 || length > 16 {
		return nil, errors.New("captcha length must be between 4 and 16")
	}
	if ttl <= 0 {
		return nil, errors.New("captcha ttl must be positive")
	}
	return &SessionValidator{length: length, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source.
func (v *SessionValidator) WithClock(now func() time.Time) *SessionValidator {
	v.now = now
	return v
}

// Issue generates a new code for scope, replacing any pending one.
func (v *SessionValidator) Issue(sess *session.Session, scope string) (string, error) {
	code, err := internal.NewCaptchaCode(v.length)
	if err != nil {
		return "", err
	}
	expires := v.now().Add(v.ttl).Unix()
	sess.Set(keyPrefix+scope, code+"|"+strconv.FormatInt(expires, 10))
	return code, nil
}

// Validate reports whether answer matches the pending code for scope.
func (v *SessionValidator) Validate(_ context.Context, sess *session.Session, scope, answer string) bool {
	if sess == nil {
		return false
	}
	stored, ok := sess.Get(keyPrefix + scope)
	if !ok {
		return false
	}
	sess.Delete(keyPrefix + scope)

	code, expiresRaw, ok := strings.Cut(stored, "|")
	if !ok {
		return false
	}
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil || v.now().Unix() > expires {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return subtle.ConstantTimeCompare([]byte(code), []byte(answer)) == 1
}
