package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueParseRoundTripHS256(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret, Issuer: "authcore"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue(Subject{ID: "user-1", Email: "a@b.com", Name: "A"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h validity, got %v", got)
	}

	claims, err := m.Parse(tok.Value)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.Subject)
	}
	if claims.Email != "a@b.com" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(tok.ExpiresAt) {
		t.Fatalf("claims expiry %v does not match envelope %v", claims.ExpiresAt.Time, tok.ExpiresAt)
	}

	sub, err := m.Subject(tok.Value)
	if err != nil || sub != "user-1" {
		t.Fatalf("Subject returned %q, %v", sub, err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.Issue(Subject{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(tok.Value, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape %q", tok.Value)
	}
	forged, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("ffffffffffffffffffffffffffffffff")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	other, err := forged.Issue(Subject{ID: "user-2"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	otherParts := strings.Split(other.Value, ".")
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	for _, in := range []string{tampered, other.Value, tok.Value + "x", "", "not.a.jwt"} {
		claims, err := m.Parse(in)
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", in, err)
		}
		if claims != nil {
			t.Fatalf("expected nil claims on failure, got %+v", claims)
		}
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret, TTL: time.Hour, Now: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.Issue(Subject{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := m.Parse(tok.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestParseRequiresExpiryAndSubject(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	noExp, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u"}}).SignedString(testSecret)
	if _, err := m.Parse(noExp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without exp to fail, got %v", err)
	}

	noSub, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}).SignedString(testSecret)
	if _, err := m.Parse(noSub); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token without subject to fail, got %v", err)
	}
}

func TestEd25519IssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue(Subject{ID: "u"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(tok.Value); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(iss, aud string, exp time.Time) Claims {
		return Claims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
	}

	if _, err := m.Parse(sign(base("other", "api", time.Now().Add(time.Minute)))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign(base("authcore", "other-api", time.Now().Add(time.Minute)))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Parse(sign(base("authcore", "api", time.Now().Add(-15*time.Second)))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign(base("authcore", "api", time.Now().Add(-2*time.Minute)))); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestUnknownKidFails(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	bad, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(bad); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.Issue(Subject{ID: "u"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good.Value); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := []struct {
		name string
		cfg  Config
	}{
		{"short secret", Config{SigningMethod: MethodHS256, PrivateKey: []byte("short")}},
		{"negative ttl", Config{SigningMethod: MethodHS256, PrivateKey: testSecret, TTL: -time.Second}},
		{"huge leeway", Config{SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour}},
		{"no ed public key", Config{SigningMethod: MethodEd25519}},
		{"bad ed public key", Config{SigningMethod: MethodEd25519, PublicKey: []byte("nope")}},
		{"kid missing from set", Config{SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "a", VerifyKeys: map[string][]byte{"b": pub}}},
		{"unknown method", Config{SigningMethod: "rs256", PrivateKey: testSecret}},
	}
	for _, tc := range cases {
		if _, err := NewManager(tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue(Subject{}); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
