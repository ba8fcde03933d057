// Package authtest wires a complete Engine for tests outside the root
// package: a temp-file sqlite store, miniredis, a mail recorder and an
// in-session captcha.
package authtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/captcha"
	"github.com/MrEthical07/authkit/mail"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/settings"
	"github.com/MrEthical07/authkit/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Password is the password AddUser gives every account.
const Password = "password123"

type Env struct {
	Engine  *authkit.Engine
	Store   *sqlstore.Store
	Mail    *mail.Recorder
	Captcha *captcha.SessionValidator
	Redis   *miniredis.Miniredis
	Hasher  *password.Hasher
}

// Config returns a configuration with test secrets, cheap hashing and
// non-secure cookies so plain-HTTP test servers keep them.
func Config() authkit.Config {
	cfg := authkit.DefaultConfig()
	cfg.Crypto.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Crypto.Salt = []byte("authkit-test-salt")
	cfg.Token.Secret = []byte("abcdefghijklmnopqrstuvwxyz012345")
	cfg.Cookie.Secure = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Registration.VerificationURL = "http://example.test/activate"
	cfg.Invitation.Enabled = true
	cfg.Invitation.CompletionURL = "http://example.test/invitation"
	cfg.Recovery.ResetURL = "http://example.test/reset"
	cfg.Mail.FromAddress = "noreply@example.test"
	cfg.Mail.FromName = "Example"
	cfg.Metrics.Enabled = true
	return cfg
}

// New builds an Env. mutate adjusts the configuration before Build.
func New(t testing.TB, mutate ...func(*authkit.Config)) *Env {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "authkit.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	cfg := Config()
	for _, m := range mutate {
		m(&cfg)
	}

	cv, err := captcha.NewSessionValidator(6, 10*time.Minute)
	if err != nil {
		t.Fatalf("captcha: %v", err)
	}
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	recorder := &mail.Recorder{}
	engine, err := authkit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithSettingStore(store).
		WithMailer(recorder).
		WithCaptcha(cv).
		WithDefaults(settings.NewTemplate(map[string]string{
			"theme":    "light",
			"language": "en",
		})).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &Env{
		Engine:  engine,
		Store:   store,
		Mail:    recorder,
		Captcha: cv,
		Redis:   mr,
		Hasher:  hasher,
	}
}

// AddUser inserts an activated account whose password is [Password].
func (e *Env) AddUser(t testing.TB, name string, accountType authkit.AccountType) int64 {
	t.Helper()
	hash, err := e.Hasher.Hash(Password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	id, err := e.Store.Insert(context.Background(), authkit.NewUser{
		Name:         name,
		NiceName:     name,
		Email:        name + "@example.test",
		PasswordHash: &hash,
		Status:       authkit.StatusActivated,
		AccountType:  accountType,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
	return id
}
