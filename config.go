package authkit

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of the Engine. Obtain a baseline from
// [DefaultConfig] and override fields; [Builder.Build] validates a private
// copy, so later mutation of the caller's value has no effect.
type Config struct {
	Session      SessionConfig
	Cookie       CookieConfig
	Crypto       CryptoConfig
	Token        TokenConfig
	Login        LoginConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	Invitation   InvitationConfig
	Recovery     RecoveryConfig
	Mail         MailConfig
	Throttle     ThrottleConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the server-side session store.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
	JitterRange time.Duration
	CookieName  string
	// Feedback queues result messages in the session lists
	// "feedback_positive" and "feedback_negative".
	Feedback bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig holds the attributes applied to every cookie the engine writes.
type CookieConfig struct {
	Path               string
	Domain             string
	Secure             bool
	HTTPOnly           bool
	SameSite           http.SameSite
	RememberMeName     string
	RememberMeLifetime time.Duration
}

// CryptoConfig keys the remember-me cookie codec.
type CryptoConfig struct {
	Secret []byte
	Salt   []byte
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the scoped anti-forgery tokens.
type TokenConfig struct {
	Secret      []byte
	TTL         time.Duration
	Issuer      string
	OneShot     bool
	RedisPrefix string
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig is the brute-force policy: MaxFailedAttempts failures with
// the latest inside FailureWindow reject further attempts.
type LoginConfig struct {
	MaxFailedAttempts int
	FailureWindow     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the password policy and Argon2id cost.
type PasswordConfig struct {
	MinLength      int
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
WORKFLOW CONFIG
====================================
*/

// MailTemplate is a subject/body pair. Body may contain the placeholders
// {link} and {name}.
type MailTemplate struct {
	Subject string
	Body    string
}

func (t MailTemplate) render(link, name string) string {
	return strings.NewReplacer("{link}", link, "{name}", name).Replace(t.Body)
}

// RegistrationConfig controls self-service sign-up.
type RegistrationConfig struct {
	Enabled         bool
	RequireCaptcha  bool
	VerificationURL string
	Mail            MailTemplate
}

// InvitationConfig controls admin invitations.
type InvitationConfig struct {
	Enabled       bool
	CompletionURL string
	Mail          MailTemplate
}

// RecoveryConfig controls password recovery.
type RecoveryConfig struct {
	RequireCaptcha bool
	ResetTTL       time.Duration
	ResetURL       string
	Mail           MailTemplate
}

// MailConfig is the sender identity of outgoing mail.
type MailConfig struct {
	FromAddress string
	FromName    string
	HTML        bool
}

// ThrottleConfig limits mail-sending requests per client IP.
type ThrottleConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Secrets are left empty
// and must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "as",
			Lifetime:    24 * time.Hour,
			JitterRange: 0,
			CookieName:  "authkit_session",
		},
		Cookie: CookieConfig{
			Path:               "/",
			Secure:             true,
			HTTPOnly:           true,
			SameSite:           http.SameSiteLaxMode,
			RememberMeName:     "remember_me",
			RememberMeLifetime: 14 * 24 * time.Hour,
		},
		Token: TokenConfig{
			TTL:         time.Hour,
			Issuer:      "authkit",
			RedisPrefix: "csrf",
		},
		Login: LoginConfig{
			MaxFailedAttempts: 3,
			FailureWindow:     30 * time.Second,
		},
		Password: PasswordConfig{
			MinLength:      8,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Registration: RegistrationConfig{
			Enabled:        true,
			RequireCaptcha: true,
			Mail: MailTemplate{
				Subject: "Account activation",
				Body:    "Hello {name},\n\nplease click this link to activate your account: {link}\n",
			},
		},
		Invitation: InvitationConfig{
			Enabled: false,
			Mail: MailTemplate{
				Subject: "You have been invited",
				Body:    "You have been invited to create an account. Complete your registration here: {link}\n",
			},
		},
		Recovery: RecoveryConfig{
			RequireCaptcha: true,
			ResetTTL:       time.Hour,
			Mail: MailTemplate{
				Subject: "Password reset",
				Body:    "Hello {name},\n\nplease click this link to reset your password: {link}\n",
			},
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxRequests: 5,
			Window:      15 * time.Minute,
			RedisPrefix: "rl",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Crypto.Secret = cloneBytes(cfg.Crypto.Secret)
	out.Crypto.Salt = cloneBytes(cfg.Crypto.Salt)
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.Lifetime < time.Minute {
		return errors.New("Session Lifetime must be >= 1m")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must not be empty")
	}

	// Cookie
	if c.Cookie.RememberMeName == "" || c.Cookie.RememberMeName == c.Session.CookieName {
		return errors.New("Cookie RememberMeName must be set and differ from the session cookie")
	}
	if c.Cookie.RememberMeLifetime <= 0 {
		return errors.New("Cookie RememberMeLifetime must be > 0")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Crypto
	if len(c.Crypto.Secret) < 16 {
		return errors.New("Crypto Secret must be >= 16 bytes")
	}
	if len(c.Crypto.Salt) == 0 {
		return errors.New("Crypto Salt must not be empty")
	}

	// Token
	if len(c.Token.Secret) < 32 {
		return errors.New("Token Secret must be >= 32 bytes")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}

	// Login
	if c.Login.MaxFailedAttempts <= 0 {
		return errors.New("Login MaxFailedAttempts must be > 0")
	}
	if c.Login.FailureWindow <= 0 {
		return errors.New("Login FailureWindow must be > 0")
	}

	// Password
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Workflows
	if c.Registration.Enabled {
		if err := validateLinkBase("Registration VerificationURL", c.Registration.VerificationURL); err != nil {
			return err
		}
	}
	if c.Invitation.Enabled {
		if err := validateLinkBase("Invitation CompletionURL", c.Invitation.CompletionURL); err != nil {
			return err
		}
	}
	if err := validateLinkBase("Recovery ResetURL", c.Recovery.ResetURL); err != nil {
		return err
	}
	if c.Recovery.ResetTTL <= 0 {
		return errors.New("Recovery ResetTTL must be > 0")
	}
	if c.Mail.FromAddress == "" {
		return errors.New("Mail FromAddress must not be empty")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxRequests <= 0 {
			return errors.New("Throttle MaxRequests must be > 0")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func validateLinkBase(name, raw string) error {
	if raw == "" {
		return errors.New(name + " must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(name + " must be an absolute URL")
	}
	return nil
}
