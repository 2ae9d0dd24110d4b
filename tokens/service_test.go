package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(t *testing.T, cfg Config) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewService(tokenstore.NewStore(rdb, ""), cfg), mr
}

func TestPasswordResetTokenLifecycle(t *testing.T) {
	svc, mr := newTestService(t, DefaultConfig())
	ctx := context.Background()

	token, err := svc.GeneratePasswordResetToken(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("expected 32 char token, got %d", len(token))
	}
	if !mr.Exists("password_reset:" + token) {
		t.Fatalf("expected namespaced key, have %v", mr.Keys())
	}

	email, ok, err := svc.ValidatePasswordResetToken(ctx, token)
	if err != nil || !ok {
		t.Fatalf("validate failed: ok=%v err=%v", ok, err)
	}
	if email != "a@b.com" {
		t.Fatalf("expected a@b.com, got %q", email)
	}

	// Reusable until TTL when single-use is off.
	if _, ok, _ := svc.ValidatePasswordResetToken(ctx, token); !ok {
		t.Fatal("expected token to remain valid before expiry")
	}

	mr.FastForward(24*time.Hour + time.Second)

	if _, ok, err := svc.ValidatePasswordResetToken(ctx, token); ok || err != nil {
		t.Fatalf("expected absent token after TTL, ok=%v err=%v", ok, err)
	}
}

func TestPurposeTTLs(t *testing.T) {
	svc, mr := newTestService(t, Config{})
	ctx := context.Background()

	cases := []struct {
		purpose Purpose
		gen     func() (string, error)
		ttl     time.Duration
	}{
		{PurposePasswordReset, func() (string, error) { return svc.GeneratePasswordResetToken(ctx, "a@b.com") }, 24 * time.Hour},
		{PurposeSetPassword, func() (string, error) { return svc.GenerateSetPasswordToken(ctx, "u1", "a@b.com") }, 72 * time.Hour},
		{PurposeEmailVerify, func() (string, error) { return svc.GenerateEmailVerifyToken(ctx, "u1", "a@b.com") }, 24 * time.Hour},
	}
	for _, tc := range cases {
		token, err := tc.gen()
		if err != nil {
			t.Fatalf("%s: generate failed: %v", tc.purpose, err)
		}
		if got := mr.TTL(string(tc.purpose) + ":" + token); got != tc.ttl {
			t.Fatalf("%s: expected ttl %v, got %v", tc.purpose, tc.ttl, got)
		}
	}
}

func TestUserPayloadTokens(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	token, err := svc.GenerateSetPasswordToken(ctx, "user-1", "a@b.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	payload, ok, err := svc.ValidateSetPasswordToken(ctx, token)
	if err != nil || !ok {
		t.Fatalf("validate failed: ok=%v err=%v", ok, err)
	}
	if payload.UserID != "user-1" || payload.Email != "a@b.com" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	verify, err := svc.GenerateEmailVerifyToken(ctx, "user-2", "c@d.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	payload, ok, err = svc.ValidateEmailVerifyToken(ctx, verify)
	if err != nil || !ok {
		t.Fatalf("validate failed: ok=%v err=%v", ok, err)
	}
	if payload.UserID != "user-2" || payload.Email != "c@d.com" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTokensAreScopedToPurpose(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	token, err := svc.GenerateEmailVerifyToken(ctx, "user-1", "a@b.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, ok, _ := svc.ValidateSetPasswordToken(ctx, token); ok {
		t.Fatal("email_verify token accepted as set_password token")
	}
	if _, ok, _ := svc.ValidatePasswordResetToken(ctx, token); ok {
		t.Fatal("email_verify token accepted as password_reset token")
	}
}

func TestMalformedInputIsAbsent(t *testing.T) {
	svc, mr := newTestService(t, DefaultConfig())
	ctx := context.Background()

	for _, tok := range []string{"", "short", "!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!", "abcdefghijklmnopqrstuvwxyz0123456789"} {
		if _, ok, err := svc.ValidatePasswordResetToken(ctx, tok); ok || err != nil {
			t.Fatalf("token %q: expected absent, ok=%v err=%v", tok, ok, err)
		}
	}

	// A stored value without a user half never decodes into a binding.
	const tok = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if err := mr.Set("set_password:"+tok, "no-separator"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, ok, err := svc.ValidateSetPasswordToken(ctx, tok); ok || err != nil {
		t.Fatalf("expected malformed payload to be absent, ok=%v err=%v", ok, err)
	}
	if err := mr.Set("email_verify:"+tok, ":a@b.com"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, ok, err := svc.ValidateEmailVerifyToken(ctx, tok); ok || err != nil {
		t.Fatalf("expected empty user id payload to be absent, ok=%v err=%v", ok, err)
	}
}

func TestGenerateRejectsBadPayload(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	if _, err := svc.GeneratePasswordResetToken(ctx, ""); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := svc.GenerateSetPasswordToken(ctx, "a:b", "a@b.com"); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := svc.Generate(ctx, Purpose("bogus"), "x"); !errors.Is(err, ErrUnknownPurpose) {
		t.Fatalf("expected ErrUnknownPurpose, got %v", err)
	}
}

func TestSingleUsePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SingleUse = true
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	token, err := svc.GeneratePasswordResetToken(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, ok, err := svc.ValidatePasswordResetToken(ctx, token); !ok || err != nil {
		t.Fatalf("first validation failed: ok=%v err=%v", ok, err)
	}
	if _, ok, err := svc.ValidatePasswordResetToken(ctx, token); ok || err != nil {
		t.Fatalf("expected consumed token, ok=%v err=%v", ok, err)
	}
}

func TestRevoke(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	token, err := svc.GenerateEmailVerifyToken(ctx, "u", "a@b.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if err := svc.Revoke(ctx, PurposeEmailVerify, token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, ok, _ := svc.ValidateEmailVerifyToken(ctx, token); ok {
		t.Fatal("expected revoked token to be absent")
	}
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	svc, mr := newTestService(t, DefaultConfig())
	mr.Close()

	if _, err := svc.GeneratePasswordResetToken(context.Background(), "a@b.com"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, _, err := svc.ValidatePasswordResetToken(context.Background(), "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
