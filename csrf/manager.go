package csrf

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const minSecretBytes = 32

var (
	// ErrTokenInvalid covers malformed, expired, mis-scoped and foreign-session tokens.
	ErrTokenInvalid = errors.New("csrf token invalid")
	// ErrTokenReplayed is returned when a one-shot token is presented twice.
	ErrTokenReplayed = errors.New("csrf token replayed")
	// ErrRedisUnavailable wraps replay-store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config controls token lifetime and validation strictness.
type Config struct {
	Secret      []byte
	TTL         time.Duration
	Issuer      string
	Leeway      time.Duration
	OneShot     bool
	RedisPrefix string
	Now         func() time.Time
}

// Claims is the token payload.
type Claims struct {
	Scope       string `json:"scp"`
	SessionHash string `json:"sh"`
	jwt.RegisteredClaims
}

// Manager issues and validates tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	redis  redis.UniversalClient
}

// NewManager validates cfg. rdb may be nil unless cfg.OneShot is set.
func NewManager(cfg Config, rdb redis.UniversalClient) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("csrf secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.OneShot && rdb == nil {
		return nil, errors.New("one-shot tokens require redis client")
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "csrf"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Manager{config: cfg, redis: rdb}, nil
}

// Issue returns a token valid for scope within the session identified by sessionID.
func (m *Manager) Issue(sessionID, scope string) (string, error) {
	if sessionID == "" || strings.TrimSpace(scope) == "" {
		return "", errors.New("session id and scope are required")
	}

	now := m.config.Now()
	claims := Claims{
		Scope:       scope,
		SessionHash: hashSession(sessionID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Validate checks token against sessionID and scope and, for one-shot
// managers, consumes it.
func (m *Manager) Validate(ctx context.Context, sessionID, scope, token string) error {
	if token == "" || sessionID == "" {
		return ErrTokenInvalid
	}

	claims, err := m.parse(token)
	if err != nil {
		return ErrTokenInvalid
	}
	if claims.Scope != scope || claims.SessionHash != hashSession(sessionID) {
		return ErrTokenInvalid
	}

	if !m.config.OneShot {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(m.config.Now()) + m.config.Leeway
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := m.redis.SetNX(ctx, m.config.RedisPrefix+":jti:"+claims.ID, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !fresh {
		return ErrTokenReplayed
	}
	return nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func hashSession(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
