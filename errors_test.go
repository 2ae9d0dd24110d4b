package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ValidationError("email", "bad"), http.StatusBadRequest},
		{MissingOAuthQueryParameter("code"), http.StatusBadRequest},
		{InvalidEmailToken(), http.StatusBadRequest},
		{AuthenticationRequired(), http.StatusUnauthorized},
		{WrongSignInCredentials("a@example.com"), http.StatusUnauthorized},
		{OAuthAccountAlreadyConnected("github"), http.StatusForbidden},
		{EarlyAccessRequired("a@example.com"), http.StatusForbidden},
		{UserNotFound("u1"), http.StatusNotFound},
		{EmailAlreadyUsed("a@example.com"), http.StatusConflict},
		{TooManyRequests(), http.StatusTooManyRequests},
		{InternalServerError(errors.New("boom")), http.StatusInternalServerError},
		{InvalidTokenError(errors.New("expired")), http.StatusInternalServerError},
		{NetworkError(errors.New("dial")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
		{nil, http.StatusOK},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", EmailAlreadyUsed("a@example.com"))
	if !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatal("expected wrapped error to match sentinel")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatal("expected no match across codes")
	}

	te, ok := AsError(err)
	if !ok || te.Data["email"] != "a@example.com" {
		t.Fatalf("unexpected AsError result: %+v %v", te, ok)
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	cause := errors.New("redis: connection refused at 10.0.0.7:6379")
	err := InternalServerError(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay in the chain")
	}
	if got := PublicMessage(err); got != ErrInternal.Message {
		t.Fatalf("PublicMessage = %q", got)
	}
	if got := PublicMessage(NetworkError(cause)); got != ErrNetwork.Message {
		t.Fatalf("PublicMessage(network) = %q", got)
	}
	if got := PublicMessage(errors.New("secret detail")); got != ErrInternal.Message {
		t.Fatalf("PublicMessage(plain) = %q", got)
	}
	if got := PublicMessage(ValidationError("email", "invalid email address")); got != "invalid email address" {
		t.Fatalf("PublicMessage(validation) = %q", got)
	}
}

func TestEveryCodeHasCategory(t *testing.T) {
	for code, cat := range codeCategory {
		if code.Category() != cat {
			t.Fatalf("%s: category mismatch", code)
		}
	}
	if len(codeCategory) != 19 {
		t.Fatalf("expected 19 codes, got %d", len(codeCategory))
	}
}
