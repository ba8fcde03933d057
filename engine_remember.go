package authkit

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// The remember-me cookie carries encrypt("<id>:<token>:<sha256hex(id:token)>").

func rememberDigest(userID int64, token string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(userID, 10) + ":" + token))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) writeRememberCookie(c *Client, userID int64, token string) error {
	plain := strconv.FormatInt(userID, 10) + ":" + token + ":" + rememberDigest(userID, token)
	value, err := e.cookies.Encrypt(plain)
	if err != nil {
		return err
	}
	e.setCookie(c, e.config.Cookie.RememberMeName, value, e.config.Cookie.RememberMeLifetime)
	return nil
}

// readRememberCookie returns the user id and token of a well-formed cookie.
func (e *Engine) readRememberCookie(c *Client) (int64, string, bool) {
	raw, ok := c.Cookies.Get(e.config.Cookie.RememberMeName)
	if !ok || raw == "" {
		return 0, "", false
	}
	plain, err := e.cookies.Decrypt(raw)
	if err != nil {
		return 0, "", false
	}

	parts := strings.Split(plain, ":")
	if len(parts) != 3 || parts[1] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	if subtle.ConstantTimeCompare([]byte(rememberDigest(id, parts[1])), []byte(parts[2])) != 1 {
		return 0, "", false
	}
	return id, parts[1], true
}
