package authkit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRememberCookieRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	c := env.client(t)
	expectCode(t, env.login(t, c, "alice", "password123", true), CodeOK)

	jar := c.Cookies.(*MemoryCookieJar)
	ck, ok := jar.Cookie(env.engine.config.Cookie.RememberMeName)
	if !ok {
		t.Fatal("expected remember-me cookie")
	}
	if ck.MaxAge != int(env.engine.config.Cookie.RememberMeLifetime/time.Second) || !ck.HttpOnly || !ck.Secure {
		t.Fatalf("unexpected cookie attributes: %+v", ck)
	}
	token := env.store.user(t, id).RememberToken
	if token == nil || len(*token) != 64 {
		t.Fatalf("expected 64 hex remember token, got %v", token)
	}

	// A new browser session carrying only the cookie.
	c2, err := env.engine.StartSession(ctx, jar)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	c2.Session.Reset()
	r, err := env.engine.LoginWithCookie(ctx, c2)
	if err != nil {
		t.Fatalf("cookie login: %v", err)
	}
	expectCode(t, r, CodeOK)
	if uid, _ := c2.UserID(); uid != id {
		t.Fatalf("expected user %d, got %d", id, uid)
	}

	after := env.store.user(t, id)
	if after.RememberToken == nil || *after.RememberToken != *token {
		t.Fatal("cookie login must not rotate the remember token")
	}
	if *after.SessionID != c2.Session.ID() {
		t.Fatal("cookie login must record the new session id")
	}

	// The same cookie keeps working.
	c3 := &Client{Session: env.client(t).Session, Cookies: jar}
	r, err = env.engine.LoginWithCookie(ctx, c3)
	if err != nil {
		t.Fatalf("cookie login: %v", err)
	}
	expectCode(t, r, CodeOK)
}

func TestRememberCookieTamperEveryCharacter(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	c := env.client(t)
	expectCode(t, env.login(t, c, "alice", "password123", true), CodeOK)
	name := env.engine.config.Cookie.RememberMeName
	original, _ := c.Cookies.Get(name)

	for i := 0; i < len(original); i++ {
		replacement := byte('A')
		if original[i] == 'A' {
			replacement = 'B'
		}
		tampered := original[:i] + string(replacement) + original[i+1:]

		jar := NewMemoryCookieJar()
		jar.cookies[name] = cookieFor(name, tampered)
		tc := &Client{Session: env.client(t).Session, Cookies: jar}

		r, err := env.engine.LoginWithCookie(ctx, tc)
		if err != nil {
			t.Fatalf("position %d: unexpected error %v", i, err)
		}
		if r.Code != CodeBadRequest || r.Message != msgCookieInvalid {
			t.Fatalf("position %d: expected generic rejection, got %d %q", i, r.Code, r.Message)
		}
		if _, ok := jar.Get(name); ok {
			t.Fatalf("position %d: expected cookie to be deleted", i)
		}
		if tc.LoggedIn() {
			t.Fatalf("position %d: client must stay anonymous", i)
		}
	}
}

func TestRememberCookieRejectsMalformedPlaintext(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()
	name := env.engine.config.Cookie.RememberMeName

	token := strings.Repeat("ab", 32)
	_ = env.store.RecordLogin(ctx, id, "x", &token, env.clock.Now())
	digest := rememberDigest(id, token)

	tests := map[string]string{
		"two fields":   formatID(id) + ":" + token,
		"four fields":  formatID(id) + ":" + token + ":" + digest + ":x",
		"bad digest":   formatID(id) + ":" + token + ":" + strings.Repeat("0", 64),
		"bad id":       "abc:" + token + ":" + digest,
		"other user":   "999:" + token + ":" + rememberDigest(999, token),
		"stale token":  formatID(id) + ":" + strings.Repeat("cd", 32) + ":" + rememberDigest(id, strings.Repeat("cd", 32)),
		"empty string": "",
	}
	for label, plain := range tests {
		t.Run(label, func(t *testing.T) {
			value, err := env.engine.cookies.Encrypt(plain)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			jar := NewMemoryCookieJar()
			jar.cookies[name] = cookieFor(name, value)
			c := &Client{Session: env.client(t).Session, Cookies: jar}

			r, err := env.engine.LoginWithCookie(ctx, c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectCode(t, r, CodeBadRequest)
			if r.Message != msgCookieInvalid {
				t.Fatalf("expected generic message, got %q", r.Message)
			}
		})
	}

	valid, err := env.engine.cookies.Encrypt(formatID(id) + ":" + token + ":" + digest)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	jar := NewMemoryCookieJar()
	jar.cookies[name] = cookieFor(name, valid)
	r, err := env.engine.LoginWithCookie(ctx, &Client{Session: env.client(t).Session, Cookies: jar})
	if err != nil {
		t.Fatalf("cookie login: %v", err)
	}
	expectCode(t, r, CodeOK)
}

func TestCookieLoginRefusesSuspendedUser(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	c := env.client(t)
	expectCode(t, env.login(t, c, "alice", "password123", true), CodeOK)
	_, _ = env.store.SetSuspension(ctx, id, timep(env.clock.Now().Add(time.Hour)))

	c2 := &Client{Session: env.client(t).Session, Cookies: c.Cookies}
	r, err := env.engine.LoginWithCookie(ctx, c2)
	if err != nil {
		t.Fatalf("cookie login: %v", err)
	}
	expectCode(t, r, CodeBadRequest)
	if r.Message != msgCookieInvalid {
		t.Fatalf("expected generic message, got %q", r.Message)
	}
}

func TestLogoutClearsRowAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	c := env.client(t)
	expectCode(t, env.login(t, c, "alice", "password123", true), CodeOK)

	r, err := env.engine.Logout(ctx, c)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	expectCode(t, r, CodeOK)

	u := env.store.user(t, id)
	if u.SessionID != nil || u.RememberToken != nil {
		t.Fatalf("expected session and token cleared, got %v %v", u.SessionID, u.RememberToken)
	}
	if _, ok := c.Cookies.Get(env.engine.config.Cookie.RememberMeName); ok {
		t.Fatal("expected remember cookie deleted")
	}
	if !c.Session.Destroyed() || c.LoggedIn() {
		t.Fatal("expected local session destroyed")
	}

	r, err = env.engine.Logout(ctx, c)
	if err != nil {
		t.Fatalf("second logout: %v", err)
	}
	expectCode(t, r, CodeOK)
}

func TestStaleLogoutKeepsLiveSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	stale := env.client(t)
	live := env.client(t)
	expectCode(t, env.login(t, stale, "alice", "password123", false), CodeOK)
	expectCode(t, env.login(t, live, "alice", "password123", true), CodeOK)
	token := env.store.user(t, id).RememberToken

	if _, err := env.engine.Logout(ctx, stale); err != nil {
		t.Fatalf("logout: %v", err)
	}

	u := env.store.user(t, id)
	if u.SessionID == nil || *u.SessionID != live.Session.ID() {
		t.Fatal("stale logout must not clear the live session id")
	}
	if u.RememberToken == nil || *u.RememberToken != *token {
		t.Fatal("stale logout must not clear the remember token")
	}
	if valid, _ := env.engine.IsSessionValid(ctx, live); !valid {
		t.Fatal("expected live session to stay valid")
	}
}

func TestCheckAuthentication(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	anon := env.client(t)
	r, err := env.engine.CheckAuthentication(ctx, anon)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)

	first := env.client(t)
	second := env.client(t)
	expectCode(t, env.login(t, first, "alice", "password123", false), CodeOK)

	r, err = env.engine.CheckAuthentication(ctx, first)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	expectCode(t, r, CodeOK)
	if r.Data["user_name"] != "alice" {
		t.Fatalf("unexpected data %+v", r.Data)
	}

	expectCode(t, env.login(t, second, "alice", "password123", false), CodeOK)
	r, err = env.engine.CheckAuthentication(ctx, first)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	expectCode(t, r, CodeUnauthorized)
	if r.Message != msgSessionStale {
		t.Fatalf("unexpected message %q", r.Message)
	}
	if first.LoggedIn() {
		t.Fatal("stale client must be logged out locally")
	}
	if valid, _ := env.engine.IsSessionValid(ctx, second); !valid {
		t.Fatal("expected newer session to stay valid")
	}
}

func TestCommitWritesSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "password123", AccountNormal)
	ctx := context.Background()

	jar := NewMemoryCookieJar()
	c, err := env.engine.StartSession(ctx, jar)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	expectCode(t, env.login(t, c, "alice", "password123", false), CodeOK)
	if err := env.engine.Commit(ctx, c); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sid, ok := jar.Get(env.engine.config.Session.CookieName)
	if !ok || sid != c.Session.ID() {
		t.Fatalf("expected session cookie %q, got %q", c.Session.ID(), sid)
	}

	again, err := env.engine.StartSession(ctx, jar)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.Session.ID() != sid || again.UserName() != "alice" {
		t.Fatal("expected the session to be loaded from its cookie")
	}

	if _, err := env.engine.Logout(ctx, again); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.engine.Commit(ctx, again); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, ok := jar.Get(env.engine.config.Session.CookieName); ok {
		t.Fatal("expected session cookie deleted after logout")
	}
}

func TestFeedbackQueue(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.Session.Feedback = true })
	env.addUser(t, "alice", "password123", AccountNormal)

	c := env.client(t)
	env.login(t, c, "alice", "wrong-password", false)
	env.login(t, c, "alice", "password123", false)

	positive, negative := env.engine.TakeFeedback(c)
	if len(positive) != 1 || positive[0] != msgLoginSuccess {
		t.Fatalf("unexpected positive feedback %v", positive)
	}
	if len(negative) != 1 || negative[0] != msgCredentials {
		t.Fatalf("unexpected negative feedback %v", negative)
	}
	if p, n := env.engine.TakeFeedback(c); p != nil || n != nil {
		t.Fatal("expected feedback to be consumed")
	}
}

func TestRememberCookieWithheldWhenLoginNotRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "password123", AccountNormal)
	env.store.failRecordLogin = errors.New("connection reset")

	c := env.client(t)
	_, err := env.engine.Login(context.Background(), c, LoginInput{
		Identifier: "alice",
		Password:   "password123",
		RememberMe: true,
		Token:      env.token(t, c, ScopeLogin),
	})
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	if _, ok := c.Cookies.(*MemoryCookieJar).Cookie(env.engine.config.Cookie.RememberMeName); ok {
		t.Fatal("remember-me cookie must not be set when the token was not stored")
	}
}
