package authkit

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "test config valid", mutate: func(c *Config) {}, wantValid: true},
		{
			name:      "short crypto secret",
			mutate:    func(c *Config) { c.Crypto.Secret = []byte("short") },
			wantValid: false,
		},
		{
			name:      "missing salt",
			mutate:    func(c *Config) { c.Crypto.Salt = nil },
			wantValid: false,
		},
		{
			name:      "short token secret",
			mutate:    func(c *Config) { c.Token.Secret = []byte("0123456789") },
			wantValid: false,
		},
		{
			name:      "password min length below 8",
			mutate:    func(c *Config) { c.Password.MinLength = 6 },
			wantValid: false,
		},
		{
			name:      "argon memory too low",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name:      "relative verification url",
			mutate:    func(c *Config) { c.Registration.VerificationURL = "/activate" },
			wantValid: false,
		},
		{
			name: "verification url ignored when registration is off",
			mutate: func(c *Config) {
				c.Registration.Enabled = false
				c.Registration.VerificationURL = ""
			},
			wantValid: true,
		},
		{
			name:      "missing completion url",
			mutate:    func(c *Config) { c.Invitation.CompletionURL = "" },
			wantValid: false,
		},
		{
			name:      "missing reset url",
			mutate:    func(c *Config) { c.Recovery.ResetURL = "" },
			wantValid: false,
		},
		{
			name:      "missing sender",
			mutate:    func(c *Config) { c.Mail.FromAddress = "" },
			wantValid: false,
		},
		{
			name:      "remember cookie equals session cookie",
			mutate:    func(c *Config) { c.Cookie.RememberMeName = c.Session.CookieName },
			wantValid: false,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name:      "zero failure window",
			mutate:    func(c *Config) { c.Login.FailureWindow = 0 },
			wantValid: false,
		},
		{
			name: "throttle without budget",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.MaxRequests = 0
			},
			wantValid: false,
		},
		{
			name:      "short session lifetime",
			mutate:    func(c *Config) { c.Session.Lifetime = 30 * time.Second },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must not validate")
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	cp := cloneConfig(cfg)
	cp.Crypto.Secret[0] = 'X'
	cp.Token.Secret[0] = 'X'
	if cfg.Crypto.Secret[0] == 'X' || cfg.Token.Secret[0] == 'X' {
		t.Fatal("clone shares secret buffers")
	}
}

func TestMailTemplateRender(t *testing.T) {
	tmpl := MailTemplate{Body: "Hi {name}, open {link} ({link})"}
	got := tmpl.render("https://example.test/x", "alice")
	want := "Hi alice, open https://example.test/x (https://example.test/x)"
	if got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
}

func TestBuildRejectsMissingDependencies(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected build without redis or stores to fail")
	}
}
