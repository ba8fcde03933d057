package authkit

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/MrEthical07/authkit/session"
)

// CookieJar reads request cookies and writes response cookies. A cookie
// with a negative MaxAge deletes it.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
}

// Client is the per-request state of one caller: its server-side session
// and its cookie jar. A Client is owned by a single request.
type Client struct {
	Session *session.Session
	Cookies CookieJar
}

func (c *Client) get(key string) string {
	if c == nil || c.Session == nil {
		return ""
	}
	v, _ := c.Session.Get(key)
	return v
}

func (c *Client) sessionID() string {
	if c == nil || c.Session == nil {
		return ""
	}
	return c.Session.ID()
}

// HTTPCookieJar adapts a request/response pair. Cookies set during the
// request are visible to later Gets.
type HTTPCookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]*http.Cookie
}

// NewHTTPCookieJar returns a jar reading from r and writing to w.
func NewHTTPCookieJar(w http.ResponseWriter, r *http.Request) *HTTPCookieJar {
	return &HTTPCookieJar{r: r, w: w, written: map[string]*http.Cookie{}}
}

func (j *HTTPCookieJar) Get(name string) (string, bool) {
	if c, ok := j.written[name]; ok {
		if c.MaxAge < 0 {
			return "", false
		}
		return c.Value, true
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPCookieJar) Set(cookie *http.Cookie) {
	j.written[cookie.Name] = cookie
	http.SetCookie(j.w, cookie)
}

// MemoryCookieJar is a map-backed jar for tests and non-HTTP callers.
type MemoryCookieJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewMemoryCookieJar returns an empty jar.
func NewMemoryCookieJar() *MemoryCookieJar {
	return &MemoryCookieJar{cookies: map[string]*http.Cookie{}}
}

func (j *MemoryCookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return "", false
	}
	return c.Value, true
}

func (j *MemoryCookieJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if cookie.MaxAge < 0 {
		delete(j.cookies, cookie.Name)
		return
	}
	cp := *cookie
	j.cookies[cookie.Name] = &cp
}

// Cookie returns a copy of the stored cookie with its attributes.
func (j *MemoryCookieJar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// LoggedIn reports whether the session carries an authenticated user.
func (c *Client) LoggedIn() bool {
	_, ok := c.UserID()
	return ok
}

// UserID returns the authenticated user id stored in the session.
func (c *Client) UserID() (int64, bool) {
	if c.get(sessionKeyLoggedIn) != "1" {
		return 0, false
	}
	id, err := strconv.ParseInt(c.get(sessionKeyUserID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UserName returns the session user name, or "" when anonymous.
func (c *Client) UserName() string {
	if !c.LoggedIn() {
		return ""
	}
	return c.get(sessionKeyUserName)
}

// AccountType returns the session account type. Anonymous clients are guests.
func (c *Client) AccountType() AccountType {
	if !c.LoggedIn() {
		return AccountGuest
	}
	t, ok := ParseAccountType(c.get(sessionKeyAccountType))
	if !ok {
		return AccountGuest
	}
	return t
}

// IsAdmin reports whether the session user is an administrator.
func (c *Client) IsAdmin() bool {
	return c.AccountType() == AccountAdmin
}
