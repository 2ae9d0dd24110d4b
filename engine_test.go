package authcore

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/storage/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []MailMessage
	opts []MailOptions
}

func (m *recordingMailer) Enqueue(_ context.Context, msg MailMessage, opts MailOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	m.opts = append(m.opts, opts)
	return nil
}

func (m *recordingMailer) messages() []MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MailMessage(nil), m.sent...)
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *sqlite.Store
	mailer *recordingMailer
	clock  *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Bearer.Secret = testSecret
	cfg.OAuth.StateSecret = testSecret
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, cfg Config, configure ...func(*Builder)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("sqlite.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = users.Close() })

	env := &testEnv{
		mr:     mr,
		rdb:    rdb,
		users:  users,
		mailer: &recordingMailer{},
		clock:  newTestClock(),
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserRepository(users).
		WithMailer(env.mailer).
		WithClock(env.clock.Now)
	for _, fn := range configure {
		fn(b)
	}
	env.engine, err = b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(env.engine.Close)
	return env
}

func (env *testEnv) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := env.engine.Register(context.Background(), email, "Test User", password)
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return res
}

func requestWithCookies(cookies ...*http.Cookie) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "https://app.example.com/", nil)
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return r
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestBuildRequiresCollaborators(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user repository")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Bearer.Secret = "short"

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	users, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("sqlite.Open failed: %v", err)
	}
	defer users.Close()

	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithUserRepository(users).Build(); err == nil {
		t.Fatal("expected short bearer secret to be rejected")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	env := newTestEnv(t, testConfig())
	b := New().WithConfig(testConfig()).WithRedis(env.rdb).WithUserRepository(env.users)
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, testConfig())
	if err := env.engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	env.mr.Close()
	if err := env.engine.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail once redis is gone")
	}
}
