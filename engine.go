package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/authkit/cookie"
	"github.com/MrEthical07/authkit/csrf"
	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/internal/rate"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/session"
	"go.uber.org/zap"
)

// Engine runs the authentication workflows. It is immutable after Build and
// safe for concurrent use; per-request state lives in a [Client].
type Engine struct {
	config   Config
	users    UserStore
	settings SettingStore
	sessions *session.Store
	tokens   *csrf.Manager
	cookies  *cookie.Codec
	hasher   *password.Hasher
	mailer   Mailer
	captcha  CaptchaValidator
	defaults DefaultsLoader
	throttle *rate.Limiter
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
	clock    func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready(c *Client) error {
	if e == nil || e.users == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if c == nil || c.Session == nil || c.Cookies == nil {
		return ErrNoClient
	}
	return nil
}

/*
====================================
CLIENT LIFECYCLE
====================================
*/

// StartSession loads the session named by the session cookie in jar, or
// starts a fresh one when the cookie is missing or unknown.
func (e *Engine) StartSession(ctx context.Context, jar CookieJar) (*Client, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	id, _ := jar.Get(e.config.Session.CookieName)
	sess, err := e.sessions.LoadOrNew(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return &Client{Session: sess, Cookies: jar}, nil
}

// Commit persists the client session and writes the session cookie. A
// destroyed session has its cookie deleted.
func (e *Engine) Commit(ctx context.Context, c *Client) error {
	if err := e.ready(c); err != nil {
		return err
	}
	if c.Session.Destroyed() {
		e.deleteCookie(c, e.config.Session.CookieName)
		return nil
	}

	current, _ := c.Cookies.Get(e.config.Session.CookieName)
	if c.Session.Dirty() || current != c.Session.ID() {
		if err := e.sessions.Save(ctx, c.Session); err != nil {
			return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
		}
	}
	if current != c.Session.ID() {
		e.setCookie(c, e.config.Session.CookieName, c.Session.ID(), 0)
	}
	return nil
}

// IssueToken returns an anti-forgery token bound to the client session and
// scope. Forms embed it and the matching operation checks it.
func (e *Engine) IssueToken(c *Client, scope string) (string, error) {
	if err := e.ready(c); err != nil {
		return "", err
	}
	return e.tokens.Issue(c.Session.ID(), scope)
}

func (e *Engine) setCookie(c *Client, name, value string, maxAge time.Duration) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		Secure:   e.config.Cookie.Secure,
		HttpOnly: e.config.Cookie.HTTPOnly,
		SameSite: e.config.Cookie.SameSite,
	}
	if maxAge > 0 {
		ck.MaxAge = int(maxAge / time.Second)
		ck.Expires = e.now().Add(maxAge)
	}
	c.Cookies.Set(ck)
}

func (e *Engine) deleteCookie(c *Client, name string) {
	c.Cookies.Set(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		Secure:   e.config.Cookie.Secure,
		HttpOnly: e.config.Cookie.HTTPOnly,
		SameSite: e.config.Cookie.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// storeErr wraps a user store failure. ErrUserNotFound passes through.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUserStoreUnavailable, err)
}
