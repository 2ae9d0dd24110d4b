package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/MrEthical07/authcore/user"
)

// dummyPassword is hashed once at build time so unknown-email sign-ins
// spend the same work as wrong-password ones.
const dummyPassword = "authcore-timing-equalization"

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// used once; Build fails on a second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       user.Repository
	earlyAccess EarlyAccess
	mailer      Mailer
	hasher      password.Hasher
	providers   []oauth.Provider

	logger    zerolog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, tokens, OAuth state and throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserRepository sets the user store. It is required.
func (b *Builder) WithUserRepository(repo user.Repository) *Builder {
	b.users = repo
	return b
}

// WithEarlyAccess installs the rollout gate. Without one every email is allowed.
func (b *Builder) WithEarlyAccess(ea EarlyAccess) *Builder {
	b.earlyAccess = ea
	return b
}

// WithMailer sets the mail queue. Without one messages are discarded.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithOAuthProvider registers p in addition to the providers configured in Config.OAuth.
func (b *Builder) WithOAuthProvider(p oauth.Provider) *Builder {
	if p != nil {
		b.providers = append(b.providers, p)
	}
	return b
}

// WithLogger sets the logger shared by the Engine and its session manager.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock replaces the time source of sessions and bearer tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component.
//
// Build may return an error when the configuration is invalid or a required
// collaborator is missing. It performs no network I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:      cfg,
		logger:      b.logger,
		now:         now,
		users:       b.users,
		earlyAccess: b.earlyAccess,
		mailer:      b.mailer,
		metrics:     NewMetrics(cfg.Metrics),
	}
	if engine.earlyAccess == nil {
		engine.earlyAccess = openAccess{}
	}
	if engine.mailer == nil {
		engine.mailer = discardMailer{}
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = argon
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	engine.dummyHash = dummy

	// -------- BEARER TOKENS --------
	bearer, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Bearer.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Bearer.SigningMethod),
		PrivateKey:    bearerKey(cfg.Bearer, true),
		PublicKey:     bearerKey(cfg.Bearer, false),
		Issuer:        cfg.Bearer.Issuer,
		Audience:      cfg.Bearer.Audience,
		Leeway:        cfg.Bearer.Leeway,
		KeyID:         cfg.Bearer.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.bearer = bearer

	// -------- SESSIONS --------
	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix).
		WithClock(now).
		WithLogger(b.logger.With().Str("component", "session_store").Logger())
	engine.sessions = session.NewManager(engine.sessionStore, session.Config{
		TTL:              cfg.Session.TTL,
		RefreshThreshold: cfg.Session.RefreshThreshold,
		SessionCookie:    cfg.Session.SessionCookie,
		UserCookie:       cfg.Session.UserCookie,
		SessionHeader:    cfg.Session.SessionHeader,
		CookieDomain:     cfg.Session.CookieDomain,
		CookiePath:       cfg.Session.CookiePath,
	}).
		WithBearer(bearer).
		WithObserver(sessionMetrics{m: engine.metrics}).
		WithLogger(b.logger.With().Str("component", "session").Logger()).
		WithClock(now)

	// -------- PURPOSE TOKENS --------
	engine.tokenStore = tokenstore.NewStore(b.redis, cfg.Tokens.RedisPrefix)
	engine.tokens = tokens.NewService(engine.tokenStore, tokens.Config{
		PasswordResetTTL: cfg.Tokens.PasswordResetTTL,
		SetPasswordTTL:   cfg.Tokens.SetPasswordTTL,
		EmailVerifyTTL:   cfg.Tokens.EmailVerifyTTL,
		Length:           cfg.Tokens.Length,
		SingleUse:        cfg.Tokens.SingleUse,
	})

	// -------- OAUTH --------
	engine.providers = oauth.NewRegistry(configuredProviders(cfg.OAuth)...)
	for _, p := range b.providers {
		engine.providers.Register(p)
	}
	secret := []byte(cfg.OAuth.StateSecret)
	if len(secret) == 0 {
		secret, err = internal.NewSecret(32)
		if err != nil {
			return nil, err
		}
		b.logger.Warn().Msg("oauth state secret not configured; generated a per-process secret")
	}
	engine.states, err = oauth.NewStateStore(engine.tokenStore, secret, cfg.OAuth.StateTTL)
	if err != nil {
		return nil, err
	}

	// -------- SIGN-IN THROTTLE --------
	if cfg.SignIn.ThrottleEnabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.SignIn.MaxAttempts,
			Window:      cfg.SignIn.Window,
			Prefix:      cfg.Tokens.RedisPrefix,
		})
	}

	// -------- AUDIT --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, func(ev internalaudit.Event) {
		b.logger.Warn().Str("event", ev.EventType).Msg("audit event dropped")
	})

	b.built = true

	return engine, nil
}

func bearerKey(cfg BearerConfig, private bool) []byte {
	if cfg.SigningMethod == string(jwt.MethodHS256) {
		if private {
			return []byte(cfg.Secret)
		}
		return nil
	}
	if private {
		return []byte(cfg.PrivateKey)
	}
	return []byte(cfg.PublicKey)
}

func configuredProviders(cfg OAuthConfig) []oauth.Provider {
	var out []oauth.Provider
	if cfg.GitHub.ClientID != "" {
		out = append(out, oauth.NewGitHub(oauth.ProviderConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			Scopes:       cfg.GitHub.Scopes,
		}))
	}
	if cfg.Google.ClientID != "" {
		out = append(out, oauth.NewGoogle(oauth.ProviderConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Scopes:       cfg.Google.Scopes,
		}))
	}
	return out
}
