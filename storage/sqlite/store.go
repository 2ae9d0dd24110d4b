package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/MrEthical07/authcore/user"
)

//go:embed schema.sql
var schema string

const userColumns = `id, email, name, avatar_url, password_hash, email_verified, created_at, updated_at`

// Store persists users and connected accounts in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ user.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite user store at path and creates missing tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// FindByID returns the user with id or user.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FindByEmail returns the user registered under the normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, user.NormalizeEmail(email))
	return scanUser(row)
}

// Create inserts a new user with a generated id.
func (s *Store) Create(ctx context.Context, in user.NewUser) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := user.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	u := &user.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		AvatarURL:     in.AvatarURL,
		PasswordHash:  in.PasswordHash,
		EmailVerified: in.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.AvatarURL, u.PasswordHash, boolToInt(u.EmailVerified),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash of id.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) (*user.User, error) {
	return s.update(ctx, id, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, passwordHash)
}

// MarkEmailVerified flags the email of id as verified.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) (*user.User, error) {
	return s.update(ctx, id, `UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?`, 1)
}

func (s *Store) update(ctx context.Context, id, query string, value any) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.sqlDB.ExecContext(ctx, query, value, toMillis(s.now()), id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return nil, user.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// FindConnectedAccount returns the account linked for a provider identity.
func (s *Store) FindConnectedAccount(ctx context.Context, provider, providerAccountID string) (*user.ConnectedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT provider, provider_account_id, user_id, access_token, refresh_token, scope, expires_at, created_at, updated_at
FROM connected_accounts WHERE provider = ? AND provider_account_id = ?`, provider, providerAccountID)

	var (
		acc                             user.ConnectedAccount
		expiresAt, createdAt, updatedAt int64
	)
	err := row.Scan(&acc.Provider, &acc.ProviderAccountID, &acc.UserID, &acc.AccessToken,
		&acc.RefreshToken, &acc.Scope, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get connected account: %w", err)
	}
	acc.ExpiresAt = fromMillis(expiresAt)
	acc.CreatedAt = fromMillis(createdAt)
	acc.UpdatedAt = fromMillis(updatedAt)
	return &acc, nil
}

// LinkConnectedAccount inserts acc or refreshes its tokens. Ownership of an
// existing link never moves to another user.
func (s *Store) LinkConnectedAccount(ctx context.Context, acc user.ConnectedAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if acc.Provider == "" || acc.ProviderAccountID == "" || acc.UserID == "" {
		return fmt.Errorf("provider, provider account id and user id are required")
	}
	now := toMillis(s.now())
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO connected_accounts (provider, provider_account_id, user_id, access_token, refresh_token, scope, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (provider, provider_account_id) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = CASE WHEN excluded.refresh_token = '' THEN connected_accounts.refresh_token ELSE excluded.refresh_token END,
    scope = excluded.scope,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at
WHERE connected_accounts.user_id = excluded.user_id`,
		acc.Provider, acc.ProviderAccountID, acc.UserID, acc.AccessToken, acc.RefreshToken,
		acc.Scope, toMillis(acc.ExpiresAt), now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return user.ErrNotFound
		}
		return fmt.Errorf("link connected account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link connected account: %w", err)
	}
	if n == 0 {
		return user.ErrAccountLinked
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u                    user.User
		verified             int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.PasswordHash, &verified, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.EmailVerified = verified != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
