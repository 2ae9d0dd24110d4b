package oauth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/tokenstore"
)

var testSecret = bytes.Repeat([]byte{7}, 32)

func newTestStateStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
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

	s, err := NewStateStore(tokenstore.NewStore(rdb, ""), testSecret, 0)
	if err != nil {
		t.Fatalf("NewStateStore failed: %v", err)
	}
	return s, mr
}

func TestNewStateStoreRejectsShortSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := NewStateStore(tokenstore.NewStore(rdb, ""), []byte("short"), 0); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestStateIssueConsume(t *testing.T) {
	s, mr := newTestStateStore(t)
	ctx := context.Background()

	in := State{Provider: "github", RedirectURI: "https://app.example.com/cb", Client: "ios", ClientNonce: "n1"}
	value, err := s.Issue(ctx, in)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	random, _, ok := strings.Cut(value, ".")
	if !ok || len(random) != stateRandomLen {
		t.Fatalf("unexpected state format %q", value)
	}
	if ttl := mr.TTL(stateKeyPrefix + random); ttl != DefaultStateTTL {
		t.Fatalf("state ttl = %v, want %v", ttl, DefaultStateTTL)
	}

	got, err := s.Consume(ctx, value)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if *got != in {
		t.Fatalf("state = %+v, want %+v", *got, in)
	}
	if got.IsWeb() || !got.MatchNonce("n1") || got.MatchNonce("n2") {
		t.Fatalf("unexpected client binding for %+v", got)
	}

	if _, err := s.Consume(ctx, value); !errors.Is(err, ErrStateExpired) {
		t.Fatalf("expected second consume to fail with ErrStateExpired, got %v", err)
	}
}

func TestStateNeverIssued(t *testing.T) {
	s, _ := newTestStateStore(t)
	ctx := context.Background()

	cases := []string{
		"",
		"no-dot",
		strings.Repeat("a", stateRandomLen) + ".forged",
		strings.Repeat("a", 10) + "." + s.sign(strings.Repeat("a", 10)),
	}
	for _, value := range cases {
		if _, err := s.Consume(ctx, value); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("Consume(%q): expected ErrStateInvalid, got %v", value, err)
		}
	}
}

func TestStateSignedButMissingIsExpired(t *testing.T) {
	s, mr := newTestStateStore(t)
	ctx := context.Background()

	value, err := s.Issue(ctx, State{Provider: "google"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	mr.FastForward(DefaultStateTTL + time.Second)

	if _, err := s.Consume(ctx, value); !errors.Is(err, ErrStateExpired) {
		t.Fatalf("expected ErrStateExpired, got %v", err)
	}
}

func TestStateSignedWithOtherSecret(t *testing.T) {
	s, _ := newTestStateStore(t)
	other := &StateStore{store: s.store, secret: bytes.Repeat([]byte{9}, 32), ttl: time.Minute}
	ctx := context.Background()

	value, err := other.Issue(ctx, State{Provider: "github"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := s.Consume(ctx, value); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("expected ErrStateInvalid, got %v", err)
	}
}

func TestWebStateMatchesAnyNonce(t *testing.T) {
	st := State{Provider: "github"}
	if !st.IsWeb() || !st.MatchNonce("") || !st.MatchNonce("x") {
		t.Fatalf("web state without nonce should match: %+v", st)
	}
}
