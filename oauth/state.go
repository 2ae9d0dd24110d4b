package oauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/tokenstore"
)

const (
	// DefaultStateTTL bounds the redirect round-trip.
	DefaultStateTTL = 10 * time.Minute
	// ClientWeb is the client kind of browser flows; every other kind must
	// bind the state to a client nonce.
	ClientWeb = "web"

	stateKeyPrefix    = "oauth_state:"
	stateRandomLen    = 32
	minStateSecretLen = 32
)

var (
	// ErrStateInvalid is returned for state strings that were never issued or
	// whose bound client nonce does not match.
	ErrStateInvalid = errors.New("oauth: invalid state")
	// ErrStateExpired is returned when a correctly signed state has no record.
	ErrStateExpired = errors.New("oauth: state expired")
	// ErrUnavailable wraps token store failures.
	ErrUnavailable = errors.New("oauth: state store unavailable")
)

// State is the server-side record bound to one authorization redirect.
type State struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirectUri"`
	Client      string `json:"client,omitempty"`
	ClientNonce string `json:"clientNonce,omitempty"`
}

// IsWeb reports whether the flow was started by a browser client.
func (s *State) IsWeb() bool {
	return s.Client == "" || strings.EqualFold(s.Client, ClientWeb)
}

// MatchNonce compares the stored client nonce with the one presented on
// callback. States issued without a nonce match anything.
func (s *State) MatchNonce(nonce string) bool {
	if s.ClientNonce == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(s.ClientNonce), []byte(nonce)) == 1
}

// StateStore issues and consumes signed state strings of the form
// "<random>.<base64url(HMAC-SHA256(secret, random))>".
type StateStore struct {
	store  *tokenstore.Store
	secret []byte
	ttl    time.Duration
}

// NewStateStore returns a StateStore. secret must be at least 32 bytes;
// a zero ttl selects DefaultStateTTL.
func NewStateStore(store *tokenstore.Store, secret []byte, ttl time.Duration) (*StateStore, error) {
	if store == nil {
		return nil, errors.New("oauth: token store is required")
	}
	if len(secret) < minStateSecretLen {
		return nil, fmt.Errorf("oauth: state secret must be at least %d bytes", minStateSecretLen)
	}
	if ttl < 0 {
		return nil, errors.New("oauth: state ttl must not be negative")
	}
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		store:  store,
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
	}, nil
}

// TTL returns how long an issued state stays redeemable.
func (s *StateStore) TTL() time.Duration { return s.ttl }

func (s *StateStore) sign(random string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(random))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue persists st and returns the state string to embed in the redirect.
func (s *StateStore) Issue(ctx context.Context, st State) (string, error) {
	random, err := internal.NewToken(stateRandomLen)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("oauth: encode state: %w", err)
	}
	if err := s.store.Set(ctx, stateKeyPrefix+random, string(payload), s.ttl); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return random + "." + s.sign(random), nil
}

// Consume verifies value and atomically removes its record, so every state
// is redeemable once.
func (s *StateStore) Consume(ctx context.Context, value string) (*State, error) {
	random, mac, ok := strings.Cut(value, ".")
	if !ok || !internal.IsToken(random, stateRandomLen) {
		return nil, ErrStateInvalid
	}
	if !hmac.Equal([]byte(mac), []byte(s.sign(random))) {
		return nil, ErrStateInvalid
	}

	raw, err := s.store.Take(ctx, stateKeyPrefix+random)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.Provider == "" {
		return nil, ErrStateInvalid
	}
	return &st, nil
}
