package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL   = 10 * time.Second
	lockWait  = 5 * time.Second
	lockRetry = 20 * time.Millisecond
)

var (
	// ErrStateBusy is returned when the state lock cannot be taken within lockWait.
	ErrStateBusy = errors.New("attribution state is locked by another process")
	// ErrLockLost is returned when the lock expired before the update was saved.
	ErrLockLost = errors.New("attribution state lock expired before the update was saved")
)

var (
	saveIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[2], ARGV[2])
	return 1
end
return 0`)

	releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisStateStore keeps the state document under a single redis key. Update
// holds a SET NX lock on "<key>:lock", so API processes on different hosts
// can share one attribution slot. Those processes must still read the same
// store directory, since the event log, the session map and the known
// operators are files.
type RedisStateStore struct {
	client *redis.Client
	key    string
}

// NewRedisStateStore connects to redis and verifies the connection.
func NewRedisStateStore(cfg config.RedisConfig) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Printf("Connected to redis at %s for attribution state", cfg.Addr)
	return NewRedisStateStoreWithClient(client, cfg.Key), nil
}

// NewRedisStateStoreWithClient wraps an existing client.
func NewRedisStateStoreWithClient(client *redis.Client, key string) *RedisStateStore {
	return &RedisStateStore{client: client, key: key}
}

// Load reads the state document. A missing key loads as the zero state.
func (s *RedisStateStore) Load(ctx context.Context) (*model.AttributionState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.AttributionState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attribution state: %w", err)
	}

	st := &model.AttributionState{}
	if err := json.Unmarshal(data, st); err != nil {
		log.Printf("Ignoring unreadable attribution state in redis, starting idle: %v", err)
		return &model.AttributionState{}, nil
	}
	return st, nil
}

// Save overwrites the state document.
func (s *RedisStateStore) Save(ctx context.Context, st *model.AttributionState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode attribution state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save attribution state: %w", err)
	}
	return nil
}

// Update runs fn while holding the state lock. The save only goes through
// if the lock is still owned by this update.
func (s *RedisStateStore) Update(ctx context.Context, fn UpdateFunc) error {
	token := uuid.NewString()
	if err := s.acquire(ctx, token); err != nil {
		return err
	}
	defer s.release(token)

	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(st)
	if err != nil || !changed {
		return err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode attribution state: %w", err)
	}
	saved, err := saveIfOwner.Run(ctx, s.client, []string{s.lockKey(), s.key}, token, data).Int()
	if err != nil {
		return fmt.Errorf("failed to save attribution state: %w", err)
	}
	if saved == 0 {
		return ErrLockLost
	}
	return nil
}

func (s *RedisStateStore) lockKey() string {
	return s.key + ":lock"
}

func (s *RedisStateStore) acquire(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	for {
		ok, err := s.client.SetNX(ctx, s.lockKey(), token, lockTTL).Result()
		if ok {
			return nil
		}
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("failed to lock attribution state: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStateBusy, ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}

func (s *RedisStateStore) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseIfOwner.Run(ctx, s.client, []string{s.lockKey()}, token).Err(); err != nil {
		log.Printf("Failed to release attribution state lock: %v", err)
	}
}

// Close releases the redis connection pool.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
