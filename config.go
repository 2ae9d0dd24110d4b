package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "AUTHCORE_"

// Config holds every tunable of the Engine. Start from DefaultConfig and
// override fields, or load it with LoadConfigFromEnv.
type Config struct {
	Bearer   BearerConfig   `envPrefix:"BEARER_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Tokens   TokensConfig   `envPrefix:"TOKENS_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	SignIn   SignInConfig   `envPrefix:"SIGNIN_"`
	OAuth    OAuthConfig    `envPrefix:"OAUTH_"`
	Mail     MailConfig     `envPrefix:"MAIL_"`
	Audit    AuditConfig    `envPrefix:"AUDIT_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
}

/*
====================================
BEARER CONFIG
====================================
*/

// BearerConfig controls bearer token signing. SigningMethod is "hs256"
// (Secret) or "ed25519" (PEM or raw key pair).
type BearerConfig struct {
	TTL           time.Duration `env:"TTL"`
	SigningMethod string        `env:"SIGNING_METHOD"`
	Secret        string        `env:"SECRET"`
	PrivateKey    string        `env:"PRIVATE_KEY"`
	PublicKey     string        `env:"PUBLIC_KEY"`
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Leeway        time.Duration `env:"LEEWAY"`
	KeyID         string        `env:"KEY_ID"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime, sliding refresh and cookie names.
type SessionConfig struct {
	TTL              time.Duration `env:"TTL"`
	RefreshThreshold time.Duration `env:"REFRESH_THRESHOLD"`
	RedisPrefix      string        `env:"REDIS_PREFIX"`
	SessionCookie    string        `env:"COOKIE"`
	UserCookie       string        `env:"USER_COOKIE"`
	SessionHeader    string        `env:"HEADER"`
	CookieDomain     string        `env:"COOKIE_DOMAIN"`
	CookiePath       string        `env:"COOKIE_PATH"`
}

/*
====================================
PURPOSE TOKEN CONFIG
====================================
*/

// TokensConfig controls purpose-bound tokens. SingleUse makes the first
// successful validation consume the token.
type TokensConfig struct {
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL"`
	SetPasswordTTL   time.Duration `env:"SET_PASSWORD_TTL"`
	EmailVerifyTTL   time.Duration `env:"EMAIL_VERIFY_TTL"`
	Length           int           `env:"LENGTH"`
	SingleUse        bool          `env:"SINGLE_USE"`
	RedisPrefix      string        `env:"REDIS_PREFIX"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the length policy and Argon2id cost. Memory is in KiB.
type PasswordConfig struct {
	MinLength      int    `env:"MIN_LENGTH"`
	MaxLength      int    `env:"MAX_LENGTH"`
	Memory         uint32 `env:"MEMORY"`
	Time           uint32 `env:"TIME"`
	Parallelism    uint8  `env:"PARALLELISM"`
	SaltLength     uint32 `env:"SALT_LENGTH"`
	KeyLength      uint32 `env:"KEY_LENGTH"`
	RehashOnSignIn bool   `env:"REHASH_ON_SIGN_IN"`
}

/*
====================================
SIGN-IN THROTTLE CONFIG
====================================
*/

// SignInConfig controls the failed sign-in throttle, keyed by email.
type SignInConfig struct {
	ThrottleEnabled bool          `env:"THROTTLE_ENABLED"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS"`
	Window          time.Duration `env:"WINDOW"`
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig controls third-party login. An empty StateSecret makes the
// builder generate a per-process secret, so states do not survive restarts
// or cross instances.
type OAuthConfig struct {
	StateTTL             time.Duration       `env:"STATE_TTL"`
	StateSecret          string              `env:"STATE_SECRET"`
	AllowedRedirectHosts []string            `env:"ALLOWED_REDIRECT_HOSTS" envSeparator:","`
	GitHub               ProviderCredentials `envPrefix:"GITHUB_"`
	Google               ProviderCredentials `envPrefix:"GOOGLE_"`
}

// ProviderCredentials is one OAuth client registration. A provider with an
// empty ClientID is not registered.
type ProviderCredentials struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls how account emails are enqueued.
type MailConfig struct {
	ProductName string `env:"PRODUCT_NAME"`
	Priority    int    `env:"PRIORITY"`
	Attempts    int    `env:"ATTEMPTS"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the reference configuration. Bearer.Secret must
// still be provided.
func DefaultConfig() Config {
	return Config{
		Bearer: BearerConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			TTL:              15 * 24 * time.Hour,
			RefreshThreshold: 7 * 24 * time.Hour,
			RedisPrefix:      "as",
			SessionCookie:    "session",
			UserCookie:       "user",
			SessionHeader:    "X-Session-Id",
			CookiePath:       "/",
		},
		Tokens: TokensConfig{
			PasswordResetTTL: 24 * time.Hour,
			SetPasswordTTL:   72 * time.Hour,
			EmailVerifyTTL:   24 * time.Hour,
			Length:           32,
			SingleUse:        false,
		},
		Password: PasswordConfig{
			MinLength:      8,
			MaxLength:      32,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			RehashOnSignIn: true,
		},
		SignIn: SignInConfig{
			ThrottleEnabled: true,
			MaxAttempts:     10,
			Window:          15 * time.Minute,
		},
		OAuth: OAuthConfig{
			StateTTL: 10 * time.Minute,
		},
		Mail: MailConfig{
			ProductName: "Account",
			Priority:    1,
			Attempts:    3,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv overlays AUTHCORE_* environment variables on
// DefaultConfig, e.g. AUTHCORE_BEARER_SECRET or AUTHCORE_SESSION_TTL=360h.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(nil)
}

func loadConfig(environment map[string]string) (Config, error) {
	cfg := DefaultConfig()
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.OAuth.AllowedRedirectHosts = append([]string(nil), cfg.OAuth.AllowedRedirectHosts...)
	out.OAuth.GitHub.Scopes = append([]string(nil), cfg.OAuth.GitHub.Scopes...)
	out.OAuth.Google.Scopes = append([]string(nil), cfg.OAuth.Google.Scopes...)
	return out
}

// Validate rejects configurations the Engine cannot run with.
func (c *Config) Validate() error {
	// Bearer
	if c.Bearer.TTL <= 0 {
		return errors.New("Bearer TTL must be > 0")
	}
	switch c.Bearer.SigningMethod {
	case "hs256":
		if len(c.Bearer.Secret) < 32 {
			return errors.New("hs256 requires a Bearer Secret of at least 32 bytes")
		}
	case "ed25519":
		if c.Bearer.PrivateKey == "" || c.Bearer.PublicKey == "" {
			return errors.New("ed25519 requires Bearer PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Bearer signing method")
	}
	if c.Bearer.Leeway < 0 {
		return errors.New("Bearer Leeway must be >= 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RefreshThreshold <= 0 || c.Session.RefreshThreshold >= c.Session.TTL {
		return errors.New("Session RefreshThreshold must be > 0 and < TTL")
	}
	if c.Session.SessionCookie == "" || c.Session.UserCookie == "" {
		return errors.New("Session cookie names must not be empty")
	}
	if c.Session.SessionCookie == c.Session.UserCookie {
		return errors.New("Session cookie names must differ")
	}

	// Purpose tokens
	if c.Tokens.PasswordResetTTL <= 0 || c.Tokens.SetPasswordTTL <= 0 || c.Tokens.EmailVerifyTTL <= 0 {
		return errors.New("Tokens TTLs must be > 0")
	}
	if c.Tokens.Length < 16 {
		return errors.New("Tokens Length must be >= 16")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
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

	// Sign-in throttle
	if c.SignIn.ThrottleEnabled && (c.SignIn.MaxAttempts <= 0 || c.SignIn.Window <= 0) {
		return errors.New("SignIn MaxAttempts and Window must be > 0 when throttling")
	}

	// OAuth
	if c.OAuth.StateTTL <= 0 {
		return errors.New("OAuth StateTTL must be > 0")
	}
	if c.OAuth.StateSecret != "" && len(c.OAuth.StateSecret) < 32 {
		return errors.New("OAuth StateSecret must be at least 32 bytes")
	}

	// Mail
	if c.Mail.Attempts < 0 {
		return errors.New("Mail Attempts must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
