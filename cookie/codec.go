// Package cookie encrypts and authenticates values stored in client cookies.
//
// A [Codec] derives an AES-256 key from an application secret and salt with
// HKDF-SHA256 and seals values with AES-GCM. The encoded form is
//
//	base64url(nonce) "." base64url(ciphertext)
//
// which is safe to place in a cookie value without further escaping.
package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	minSecret = 16
	hkdfInfo  = "authkit cookie v1"
)

var strictEncoding = base64.RawURLEncoding.Strict()

// ErrInvalidValue is returned for any value that fails to decode or authenticate.
var ErrInvalidValue = errors.New("invalid cookie value")

// Codec seals and opens cookie values. It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the cookie key from secret and salt.
func NewCodec(secret, salt []byte) (*Codec, error) {
	if len(secret) < minSecret {
		return nil, fmt.Errorf("cookie secret must be at least %d bytes", minSecret)
	}
	if len(salt) == 0 {
		return nil, errors.New("cookie salt must not be empty")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving cookie key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM cipher: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("creating AES nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	var sb strings.Builder
	sb.WriteString(base64.RawURLEncoding.EncodeToString(nonce))
	sb.WriteByte('.')
	sb.WriteString(base64.RawURLEncoding.EncodeToString(ciphertext))
	return sb.String(), nil
}

// Decrypt opens a value produced by Encrypt. Every failure maps to ErrInvalidValue.
func (c *Codec) Decrypt(value string) (string, error) {
	noncePart, cipherPart, ok := strings.Cut(value, ".")
	if !ok {
		return "", ErrInvalidValue
	}

	nonce, err := strictEncoding.DecodeString(noncePart)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrInvalidValue
	}
	ciphertext, err := strictEncoding.DecodeString(cipherPart)
	if err != nil {
		return "", ErrInvalidValue
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidValue
	}
	return string(plaintext), nil
}
