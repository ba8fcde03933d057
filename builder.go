package authkit

import (
	"errors"
	"time"

	"github.com/MrEthical07/authkit/cookie"
	"github.com/MrEthical07/authkit/csrf"
	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/internal/rate"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/session"
	"github.com/MrEthical07/authkit/settings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserStore
	settings SettingStore
	mailer   Mailer
	captcha  CaptchaValidator
	defaults DefaultsLoader

	logger    *zap.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, token replay and throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithSettingStore(s SettingStore) *Builder {
	b.settings = s
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithCaptcha is required when registration or recovery demand a captcha.
func (b *Builder) WithCaptcha(c CaptchaValidator) *Builder {
	b.captcha = c
	return b
}

// WithDefaults sets the settings template. Without one, new accounts start
// with no settings.
func (b *Builder) WithDefaults(d DefaultsLoader) *Builder {
	b.defaults = d
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink enables delivery of audit events when Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for expiry and throttle decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.settings == nil {
		return nil, errors.New("setting store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if b.captcha == nil && (cfg.Registration.RequireCaptcha || cfg.Recovery.RequireCaptcha) {
		return nil, errors.New("captcha validator required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := b.defaults
	if defaults == nil {
		defaults = settings.NewTemplate(nil)
	}

	// -------- SESSIONS --------
	sessions := session.NewStore(
		b.redis,
		cfg.Session.RedisPrefix,
		cfg.Session.Lifetime,
		cfg.Session.JitterRange,
	)

	// -------- TOKENS --------
	tokens, err := csrf.NewManager(csrf.Config{
		Secret:      cfg.Token.Secret,
		TTL:         cfg.Token.TTL,
		Issuer:      cfg.Token.Issuer,
		OneShot:     cfg.Token.OneShot,
		RedisPrefix: cfg.Token.RedisPrefix,
		Now:         clock,
	}, b.redis)
	if err != nil {
		return nil, err
	}

	// -------- COOKIE CODEC --------
	codec, err := cookie.NewCodec(cfg.Crypto.Secret, cfg.Crypto.Salt)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	// -------- THROTTLE --------
	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		throttle = rate.New(b.redis, cfg.Throttle.RedisPrefix, rate.Config{
			MaxRequests: cfg.Throttle.MaxRequests,
			Window:      cfg.Throttle.Window,
		})
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger.Named("audit"),
	}, sink)

	b.built = true

	return &Engine{
		config:   cfg,
		users:    b.users,
		settings: b.settings,
		sessions: sessions,
		tokens:   tokens,
		cookies:  codec,
		hasher:   hasher,
		mailer:   b.mailer,
		captcha:  b.captcha,
		defaults: defaults,
		throttle: throttle,
		audit:    dispatcher,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger.Named("authkit"),
		clock:    clock,
	}, nil
}
