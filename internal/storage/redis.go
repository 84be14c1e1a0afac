package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const metaFieldUpdatedAt = "updated_at"

// RedisCookieStore keeps cookie blobs in Redis: `cookies:<uid>` holds the blob,
// `cookies:meta:<uid>` is a hash with record metadata. Records have no TTL and
// live until explicitly cleared.
type RedisCookieStore struct {
	client *redis.Client
}

// NewRedisCookieStore connects to Redis using the given URL and pings it to
// confirm the connection before returning the store.
func NewRedisCookieStore(ctx context.Context, redisURL string) (*RedisCookieStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCookieStore{client: client}, nil
}

func cookieKey(userID int64) string {
	return fmt.Sprintf("cookies:%d", userID)
}

func cookieMetaKey(userID int64) string {
	return fmt.Sprintf("cookies:meta:%d", userID)
}

// Get implements CookieStore.
func (s *RedisCookieStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	text, err := s.client.Get(ctx, cookieKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cookies for user %d: %w", userID, err)
	}
	return text, true, nil
}

// Set implements CookieStore.
func (s *RedisCookieStore) Set(ctx context.Context, userID int64, text string) error {
	if err := s.client.Set(ctx, cookieKey(userID), text, 0).Err(); err != nil {
		return fmt.Errorf("failed to store cookies for user %d: %w", userID, err)
	}
	if err := s.client.HSet(ctx, cookieMetaKey(userID), metaFieldUpdatedAt, time.Now().Format(time.RFC3339)).Err(); err != nil {
		return fmt.Errorf("failed to store cookie metadata for user %d: %w", userID, err)
	}
	return nil
}

// Delete implements CookieStore.
func (s *RedisCookieStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, cookieKey(userID), cookieMetaKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cookies for user %d: %w", userID, err)
	}
	return nil
}

// UpdatedAt implements CookieStore.
func (s *RedisCookieStore) UpdatedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	raw, err := s.client.HGet(ctx, cookieMetaKey(userID), metaFieldUpdatedAt).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get cookie metadata for user %d: %w", userID, err)
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed cookie timestamp for user %d: %w", userID, err)
	}
	return at, true, nil
}

// Close closes the underlying Redis client.
func (s *RedisCookieStore) Close() error {
	return s.client.Close()
}
