package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authkit"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type serverConfig struct {
	Addr      string  `env:"AUTHKIT_ADDR,default=:8080"`
	RateLimit float64 `env:"AUTHKIT_RATE_LIMIT,default=20"`
	RateBurst int     `env:"AUTHKIT_RATE_BURST,default=40"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogDev   bool   `env:"LOG_DEV,default=false"`
	LogFile  string `env:"LOG_FILE"`

	// RedisAddr empty runs an embedded miniredis; development only.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	DBDriver string `env:"DB_DRIVER,default=sqlite"`
	DBDSN    string `env:"DB_DSN,default=authkit.db"`
	DBConns  int    `env:"DB_MAX_CONNS,default=10"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM,default=noreply@localhost"`
	MailFromName string `env:"MAIL_FROM_NAME,default=authkit"`

	CookieSecret string `env:"AUTHKIT_COOKIE_SECRET"`
	CookieSalt   string `env:"AUTHKIT_COOKIE_SALT"`
	TokenSecret  string `env:"AUTHKIT_TOKEN_SECRET"`
	InsecureHTTP bool   `env:"AUTHKIT_INSECURE_COOKIES,default=false"`

	SessionLifetime time.Duration `env:"AUTHKIT_SESSION_LIFETIME,default=24h"`
	BaseURL         string        `env:"AUTHKIT_BASE_URL,default=http://localhost:8080"`
	AllowSignup     bool          `env:"AUTHKIT_REGISTRATION,default=true"`
	AllowInvites    bool          `env:"AUTHKIT_INVITATIONS,default=false"`
	Throttle        bool          `env:"AUTHKIT_MAIL_THROTTLE,default=true"`
	Audit           bool          `env:"AUTHKIT_AUDIT,default=true"`
	SettingsFile    string        `env:"AUTHKIT_SETTINGS_TEMPLATE"`
}

// loadConfig reads .env when present, then the process environment.
func loadConfig(ctx context.Context) (serverConfig, error) {
	_ = godotenv.Load()

	var cfg serverConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if cfg.CookieSecret == "" || cfg.CookieSalt == "" || cfg.TokenSecret == "" {
		return serverConfig{}, errors.New("AUTHKIT_COOKIE_SECRET, AUTHKIT_COOKIE_SALT and AUTHKIT_TOKEN_SECRET are required")
	}
	return cfg, nil
}

func (c serverConfig) engineConfig() authkit.Config {
	cfg := authkit.DefaultConfig()
	cfg.Session.Lifetime = c.SessionLifetime
	cfg.Session.Feedback = true
	cfg.Cookie.Secure = !c.InsecureHTTP
	cfg.Crypto.Secret = []byte(c.CookieSecret)
	cfg.Crypto.Salt = []byte(c.CookieSalt)
	cfg.Token.Secret = []byte(c.TokenSecret)

	cfg.Registration.Enabled = c.AllowSignup
	cfg.Registration.VerificationURL = c.BaseURL + "/api/register/verify"
	cfg.Invitation.Enabled = c.AllowInvites
	cfg.Invitation.CompletionURL = c.BaseURL + "/invitation"
	cfg.Recovery.ResetURL = c.BaseURL + "/recovery"

	cfg.Mail.FromAddress = c.MailFrom
	cfg.Mail.FromName = c.MailFromName
	cfg.Throttle.Enabled = c.Throttle
	cfg.Audit.Enabled = c.Audit
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}
