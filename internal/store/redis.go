package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/interview-guard/internal/integrity"
)

const defaultRedisPrefix = "monitoring"

// RedisStore keeps monitoring records as JSON documents in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis backed store. A zero ttl keeps records forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// LoadMonitoringState implements ApplicationStore.
func (s *RedisStore) LoadMonitoringState(ctx context.Context, userID, jobID string) (*integrity.Record, error) {
	data, err := s.client.Get(ctx, s.key(userID, jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %v", integrity.ErrPersistence, err)
	}

	var rec integrity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", integrity.ErrPersistence, err)
	}
	return &rec, nil
}

// SaveMonitoringState implements ApplicationStore.
func (s *RedisStore) SaveMonitoringState(ctx context.Context, userID, jobID string, rec integrity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", integrity.ErrPersistence, err)
	}

	if err := s.client.Set(ctx, s.key(userID, jobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", integrity.ErrPersistence, err)
	}
	return nil
}

// Close implements ApplicationStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(userID, jobID string) string {
	return s.prefix + ":" + recordKey(userID, jobID)
}
