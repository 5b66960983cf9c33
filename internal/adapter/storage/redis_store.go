// internal/adapter/storage/redis_store.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"geofinder/internal/domain/session"
)

// RedisStore keeps sessions as JSON values under a key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed session store. Keys expire after ttl
// as a backstop for the idle sweep; a zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Save stores the session
func (r *RedisStore) Save(ctx context.Context, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *RedisStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error unmarshaling session: %w", err)
	}
	return &s, nil
}

// Delete removes a session
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

// ListIdleSince scans the key prefix and returns sessions not updated since t
func (r *RedisStore) ListIdleSince(ctx context.Context, t time.Time) ([]string, error) {
	var ids []string

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), r.prefix)

		s, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}

		if s.UpdatedAt.Before(t) {
			ids = append(ids, id)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning sessions: %w", err)
	}

	return ids, nil
}
