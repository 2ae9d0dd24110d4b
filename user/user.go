package user

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user or connected account matches.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by Create when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountLinked is returned when a provider identity is already linked.
	ErrAccountLinked = errors.New("connected account already linked")
)

// User is the stored identity record. PasswordHash is empty for accounts
// created through OAuth that never set a password.
type User struct {
	ID            string
	Email         string
	Name          string
	AvatarURL     string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether the user can sign in with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	HasPassword   bool      `json:"hasPassword"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
		HasPassword:   u.HasPassword(),
		CreatedAt:     u.CreatedAt,
	}
}

// NewUser is the input for Repository.Create. Email must already be normalized.
type NewUser struct {
	Email         string
	Name          string
	AvatarURL     string
	PasswordHash  string
	EmailVerified bool
}

// ConnectedAccount links a third-party provider identity to a local user.
type ConnectedAccount struct {
	Provider          string
	ProviderAccountID string
	UserID            string
	AccessToken       string
	RefreshToken      string
	Scope             string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository is the user persistence contract.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*User, error)
	MarkEmailVerified(ctx context.Context, id string) (*User, error)

	FindConnectedAccount(ctx context.Context, provider, providerAccountID string) (*ConnectedAccount, error)
	// LinkConnectedAccount inserts acc, or refreshes its tokens when the same
	// user already owns it. It returns ErrAccountLinked when the identity
	// belongs to a different user.
	LinkConnectedAccount(ctx context.Context, acc ConnectedAccount) error
}
