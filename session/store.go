package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable wraps Redis transport and server failures.
	ErrUnavailable = errors.New("session store unavailable")
	// ErrNotFound is returned when a (session id, user id) entry is absent or expired.
	ErrNotFound = errors.New("user session not found")
)

const maxTxRetries = 4

const deleteSessionScript = `
local n = redis.call("HLEN", KEYS[1])
if n > 0 then
  redis.call("DEL", KEYS[1])
end
return n
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// ARGV holds (field, value) pairs; a field is removed only while it still
// holds the value that was read as stale.
const pruneStaleScript = `
local n = 0
for i = 1, #ARGV, 2 do
  if redis.call("HGET", KEYS[1], ARGV[i]) == ARGV[i + 1] then
    n = n + redis.call("HDEL", KEYS[1], ARGV[i])
  end
end
return n
`

var pruneStaleLua = redis.NewScript(pruneStaleScript)

// Store is the Redis session repository.
//
// Layout: one hash per session id at "{prefix}:{sessionID}". Each field is a
// user id and its value the encoded {createdAt, expiresAt} record. The hash
// TTL tracks the furthest entry expiry so abandoned session ids disappear on
// their own; entry expiry is enforced on read.
//
//	Performance: reads are 1 HGETALL/HGET; writes are WATCH + MULTI.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore creates a session [Store]. An empty prefix defaults to "as".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLogger sets the logger for best-effort cleanup failures.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.logger = l
	return s
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Exists reports whether the session id has any server-side record.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// List returns the live entries of sessionID ordered by CreatedAt ascending,
// ties broken by user id. Expired and undecodable entries are skipped and
// removed best-effort.
func (s *Store) List(ctx context.Context, sessionID string) ([]UserSession, error) {
	key := s.key(sessionID)

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := s.now()
	out := make([]UserSession, 0, len(fields))
	var stale []string
	for userID, raw := range fields {
		rec, err := Decode([]byte(raw))
		if err != nil || rec.UserID != userID || !rec.ExpiresAt.After(now) {
			stale = append(stale, userID, raw)
			continue
		}
		rec.SessionID = sessionID
		out = append(out, *rec)
	}

	if len(stale) > 0 {
		s.prune(ctx, key, stale)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// prune removes the (field, value) pairs in stale that are unchanged since
// they were read. A concurrent Create that rewrote a field keeps its entry.
func (s *Store) prune(ctx context.Context, key string, stale []string) {
	args := make([]any, len(stale))
	for i, v := range stale {
		args[i] = v
	}
	if err := pruneStaleLua.Run(ctx, s.redis, []string{key}, args...).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("session cleanup failed")
	}
}

// Get returns the entry for (sessionID, userID).
func (s *Store) Get(ctx context.Context, sessionID, userID string) (*UserSession, error) {
	raw, err := s.redis.HGet(ctx, s.key(sessionID), userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := Decode(raw)
	if err != nil || rec.UserID != userID || !rec.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	rec.SessionID = sessionID
	return rec, nil
}

// Create stores us unless a live entry for the same (session id, user id)
// already exists, in which case the existing entry is returned and created
// is false.
//
//	Performance: WATCH + HGET + PTTL + MULTI(HSET, PEXPIRE).
func (s *Store) Create(ctx context.Context, us UserSession) (*UserSession, bool, error) {
	data, err := Encode(&us)
	if err != nil {
		return nil, false, err
	}
	key := s.key(us.SessionID)

	for i := 0; i < maxTxRetries; i++ {
		var (
			result  *UserSession
			created bool
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := s.now()

			raw, err := tx.HGet(ctx, key, us.UserID).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				if rec, decErr := Decode(raw); decErr == nil && rec.UserID == us.UserID && rec.ExpiresAt.After(now) {
					rec.SessionID = us.SessionID
					result = rec
					return nil
				}
			}

			extend, err := s.keyTTLBelow(ctx, tx, key, us.ExpiresAt.Sub(now))
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, us.UserID, data)
				if extend {
					pipe.PExpire(ctx, key, us.ExpiresAt.Sub(now))
				}
				return nil
			})
			if err != nil {
				return err
			}

			stored, decErr := Decode(data)
			if decErr != nil {
				return decErr
			}
			stored.SessionID = us.SessionID
			result = stored
			created = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return result, created, nil
	}

	return nil, false, fmt.Errorf("%w: create contention", ErrUnavailable)
}

// Extend moves the entry's expiry to newExpiry only if its stored expiry
// still equals expected and newExpiry is later. It returns the stored expiry
// after the call and whether this call wrote it. A lost race reports the
// winner's expiry, so expiry never moves backwards.
//
//	Performance: WATCH + HGET + PTTL + MULTI(HSET, PEXPIRE).
func (s *Store) Extend(ctx context.Context, sessionID, userID string, expected, newExpiry time.Time) (time.Time, bool, error) {
	key := s.key(sessionID)

	for i := 0; i < maxTxRetries; i++ {
		var (
			current time.Time
			wrote   bool
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := s.now()

			raw, err := tx.HGet(ctx, key, userID).Bytes()
			if err != nil {
				return err
			}
			rec, err := Decode(raw)
			if err != nil || rec.UserID != userID || !rec.ExpiresAt.After(now) {
				return ErrNotFound
			}

			current = rec.ExpiresAt
			if rec.ExpiresAt.UnixMilli() != expected.UnixMilli() || !newExpiry.After(rec.ExpiresAt) {
				return nil
			}

			rec.ExpiresAt = newExpiry
			data, err := Encode(rec)
			if err != nil {
				return err
			}

			extend, err := s.keyTTLBelow(ctx, tx, key, newExpiry.Sub(now))
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, userID, data)
				if extend {
					pipe.PExpire(ctx, key, newExpiry.Sub(now))
				}
				return nil
			})
			if err != nil {
				return err
			}

			current = time.UnixMilli(newExpiry.UnixMilli())
			wrote = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, ErrNotFound) {
				return time.Time{}, false, ErrNotFound
			}
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return current, wrote, nil
	}

	return time.Time{}, false, fmt.Errorf("%w: extend contention", ErrUnavailable)
}

// keyTTLBelow reports whether the hash TTL is shorter than want.
func (s *Store) keyTTLBelow(ctx context.Context, tx *redis.Tx, key string, want time.Duration) (bool, error) {
	ttl, err := tx.PTTL(ctx, key).Result()
	if err != nil {
		return false, err
	}
	// -2 missing key, -1 no expiry set.
	if ttl < 0 {
		return true, nil
	}
	return ttl < want, nil
}

// Delete removes one user's entry from sessionID and returns the number removed.
func (s *Store) Delete(ctx context.Context, sessionID, userID string) (int, error) {
	n, err := s.redis.HDel(ctx, s.key(sessionID), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// DeleteAll removes the whole sessionID record and returns how many user
// entries it held. Deleting an absent session id returns 0.
//
//	Performance: 1 Lua script (HLEN + DEL).
func (s *Store) DeleteAll(ctx context.Context, sessionID string) (int, error) {
	n, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
