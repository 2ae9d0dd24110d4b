package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigReferenceValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bearer.TTL != 24*time.Hour {
		t.Fatalf("bearer ttl = %v", cfg.Bearer.TTL)
	}
	if cfg.Session.TTL != 15*24*time.Hour || cfg.Session.RefreshThreshold != 7*24*time.Hour {
		t.Fatalf("session ttl/threshold = %v/%v", cfg.Session.TTL, cfg.Session.RefreshThreshold)
	}
	if cfg.Tokens.PasswordResetTTL != 24*time.Hour || cfg.Tokens.SetPasswordTTL != 72*time.Hour || cfg.Tokens.EmailVerifyTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttls: %+v", cfg.Tokens)
	}
	if cfg.Tokens.Length != 32 || cfg.Tokens.SingleUse {
		t.Fatalf("unexpected token policy: %+v", cfg.Tokens)
	}
	if cfg.OAuth.StateTTL != 10*time.Minute {
		t.Fatalf("state ttl = %v", cfg.OAuth.StateTTL)
	}

	// Everything but the signing secret is usable as shipped.
	cfg.Bearer.Secret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "test config", mutate: func(*Config) {}, wantValid: true},
		{name: "missing secret", mutate: func(c *Config) { c.Bearer.Secret = "" }},
		{name: "unknown signing method", mutate: func(c *Config) { c.Bearer.SigningMethod = "rs256" }},
		{name: "ed25519 without keys", mutate: func(c *Config) { c.Bearer.SigningMethod = "ed25519" }},
		{name: "threshold equals ttl", mutate: func(c *Config) { c.Session.RefreshThreshold = c.Session.TTL }},
		{name: "same cookie names", mutate: func(c *Config) { c.Session.UserCookie = c.Session.SessionCookie }},
		{name: "short tokens", mutate: func(c *Config) { c.Tokens.Length = 8 }},
		{name: "zero token ttl", mutate: func(c *Config) { c.Tokens.EmailVerifyTTL = 0 }},
		{name: "min above max", mutate: func(c *Config) { c.Password.MinLength = 40 }},
		{name: "weak argon memory", mutate: func(c *Config) { c.Password.Memory = 1024 }},
		{name: "short state secret", mutate: func(c *Config) { c.OAuth.StateSecret = "short" }},
		{name: "empty state secret", mutate: func(c *Config) { c.OAuth.StateSecret = "" }, wantValid: true},
		{name: "throttle without window", mutate: func(c *Config) { c.SignIn.Window = 0 }},
		{name: "throttle disabled", mutate: func(c *Config) { c.SignIn.ThrottleEnabled = false; c.SignIn.Window = 0 }, wantValid: true},
		{name: "audit without buffer", mutate: func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := loadConfig(map[string]string{
		"AUTHCORE_BEARER_SECRET":                testSecret,
		"AUTHCORE_SESSION_TTL":                  "720h",
		"AUTHCORE_SESSION_COOKIE":               "sid",
		"AUTHCORE_TOKENS_SINGLE_USE":            "true",
		"AUTHCORE_OAUTH_GITHUB_CLIENT_ID":       "gh-client",
		"AUTHCORE_OAUTH_ALLOWED_REDIRECT_HOSTS": "app.example.com,.example.org",
	})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Bearer.Secret != testSecret || cfg.Session.TTL != 720*time.Hour || cfg.Session.SessionCookie != "sid" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.Tokens.SingleUse || cfg.OAuth.GitHub.ClientID != "gh-client" {
		t.Fatalf("nested overrides not applied: %+v %+v", cfg.Tokens, cfg.OAuth.GitHub)
	}
	if len(cfg.OAuth.AllowedRedirectHosts) != 2 {
		t.Fatalf("unexpected allowed hosts: %v", cfg.OAuth.AllowedRedirectHosts)
	}
	// Untouched fields keep their defaults.
	if cfg.Session.RefreshThreshold != 7*24*time.Hour || cfg.Tokens.Length != 32 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	if _, err := loadConfig(map[string]string{"AUTHCORE_SESSION_TTL": "fortnight"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWithConfigCopiesSlices(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.AllowedRedirectHosts = []string{"app.example.com"}
	b := New().WithConfig(cfg)
	cfg.OAuth.AllowedRedirectHosts[0] = "evil.example.net"

	if b.config.OAuth.AllowedRedirectHosts[0] != "app.example.com" {
		t.Fatal("builder shares caller slice")
	}
}
