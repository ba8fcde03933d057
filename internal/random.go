package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// SessionID is the raw form of a server-side session identifier.
type SessionID [16]byte

const (
	rememberTokenSize = 32
	linkHashSize      = 20
)

const captchaAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewRememberToken returns 64 hex characters of randomness.
func NewRememberToken() (string, error) {
	return randomHex(rememberTokenSize)
}

// NewLinkHash returns the 40 hex character secret embedded in activation,
// invitation and password reset links.
func NewLinkHash() (string, error) {
	return randomHex(linkHashSize)
}

// NewCaptchaCode returns a random code drawn from an alphabet without
// easily confused glyphs.
func NewCaptchaCode(length int) (string, error) {
	if length < 4 || length > 16 {
		return "", errors.New("invalid captcha length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(captchaAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(captchaAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func randomHex(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
