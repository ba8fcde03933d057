package csrf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestIssueValidateScopeAndSession(t *testing.T) {
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	token, err := m.Issue("sess-1", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := m.Validate(ctx, "sess-1", "login", token); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if err := m.Validate(ctx, "sess-1", "admin", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected scope mismatch to fail, got %v", err)
	}
	if err := m.Validate(ctx, "sess-2", "login", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected foreign session to fail, got %v", err)
	}
	if err := m.Validate(ctx, "sess-1", "login", ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Minute, Now: func() time.Time { return now }}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, err := m.Issue("sess", "settings")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := m.Validate(context.Background(), "sess", "settings", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestValidateRejectsWrongAlgorithmAndKey(t *testing.T) {
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	claims := Claims{
		Scope:       "login",
		SessionHash: hashSession("sess"),
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "x",
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	foreign, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-another-secret-00"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := m.Validate(context.Background(), "sess", "login", foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected foreign key to fail, got %v", err)
	}

	unsigned, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if err := m.Validate(context.Background(), "sess", "login", unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected alg none to fail, got %v", err)
	}
}

func TestOneShotRejectsReplay(t *testing.T) {
	_, rdb := newTestRedis(t)

	m, err := NewManager(Config{Secret: testSecret, TTL: time.Minute, OneShot: true}, rdb)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	token, err := m.Issue("sess", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := m.Validate(ctx, "sess", "admin", token); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := m.Validate(ctx, "sess", "admin", token); !errors.Is(err, ErrTokenReplayed) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
}

func TestOneShotRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)

	m, err := NewManager(Config{Secret: testSecret, TTL: time.Minute, OneShot: true}, rdb)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, err := m.Issue("sess", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mr.Close()
	if err := m.Validate(context.Background(), "sess", "admin", token); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), TTL: time.Minute}, nil); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewManager(Config{Secret: testSecret}, nil); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{Secret: testSecret, TTL: time.Minute, OneShot: true}, nil); err == nil {
		t.Fatal("expected one-shot without redis to be rejected")
	}
}
