package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a key is absent or its TTL elapsed.
	ErrNotFound = errors.New("token not found")
	// ErrUnavailable wraps Redis transport and server failures.
	ErrUnavailable = errors.New("token store unavailable")
	// ErrInvalidTTL is returned by Set for non-positive durations.
	ErrInvalidTTL = errors.New("token ttl must be positive")
)

// Store reads and writes TTL-bound string values in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store. A non-empty prefix is prepended to every key as "prefix:".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Set writes value under key, replacing any previous value and TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value stored under key without consuming it.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// Take returns the value stored under key and deletes it in the same
// transaction. Concurrent callers racing for one key see at most one success.
func (s *Store) Take(ctx context.Context, key string) (string, error) {
	const maxRetries = 4
	k := s.key(key)

	for i := 0; i < maxRetries; i++ {
		var value string

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			v, err := tx.Get(ctx, k).Result()
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
			if err != nil {
				return err
			}

			value = v
			return nil
		}, k)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return "", ErrNotFound
			}
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		return value, nil
	}

	// Every attempt lost the race; another caller consumed the value.
	return "", ErrNotFound
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// -2: missing key, -1: no expiry. Both are treated as absent since every
	// value written by this store carries a TTL.
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
