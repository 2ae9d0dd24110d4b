package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// TokenAlphabet is the character set used for purpose tokens and OAuth state nonces.
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var errInvalidLength = errors.New("invalid random length")

// RandomString returns n characters drawn uniformly from alphabet using crypto/rand.
func RandomString(alphabet string, n int) (string, error) {
	if n <= 0 || len(alphabet) == 0 {
		return "", errInvalidLength
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}

	out := b.String()
	if len(out) != n {
		return "", fmt.Errorf("invalid random generation length")
	}
	return out, nil
}

// NewToken returns an alphanumeric token of length n.
func NewToken(n int) (string, error) {
	return RandomString(TokenAlphabet, n)
}

// IsToken reports whether s has exactly length n and only TokenAlphabet characters.
func IsToken(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// NewSecret returns n random bytes.
func NewSecret(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errInvalidLength
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
