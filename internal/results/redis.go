package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRunPrefix = "kerntune:run:"
	redisLatestKey = "kerntune:run:latest"
)

// RedisStore shares result sets between machines, so a sweep on a lab box
// can be reported on elsewhere.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis. A ttl of 0 keeps result sets forever.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Save stores the set under its run id and marks it as the latest run.
// Saving a run id twice fails with ErrAlreadySaved.
func (r *RedisStore) Save(ctx context.Context, set *Set) error {
	if set.Run.ID == "" {
		return errors.New("result set has no run id")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, set); err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, redisRunPrefix+set.Run.ID, buf.Bytes(), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store result set in redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: run %s", ErrAlreadySaved, set.Run.ID)
	}
	if err := r.client.Set(ctx, redisLatestKey, set.Run.ID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update latest run pointer: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Set, error) {
	if id == "" || id == Latest {
		latest, err := r.client.Get(ctx, redisLatestKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: no runs stored", ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read latest run pointer: %w", err)
		}
		id = latest
	}

	data, err := r.client.Get(ctx, redisRunPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result set from redis: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
