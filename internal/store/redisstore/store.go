package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix   = "socialbot:lock:"
	lockTTL      = 5 * time.Minute
	lockPollWait = 100 * time.Millisecond
)

// ErrLockLost is returned by unlock when the lease expired before release,
// so another holder may have run concurrently.
var ErrLockLost = errors.New("redis lock lost")

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, ttl: lockTTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// delete only if we still own it
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock takes a distributed lock on key, polling until it is free or ctx ends.
// The lock expires after the store TTL so a crashed holder cannot wedge a user.
func (s *Store) Lock(ctx context.Context, key string) (func() error, error) {
	full := lockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := s.rdb.SetNX(ctx, full, token, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(lockPollWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() error {
		if err := s.unlock(context.WithoutCancel(ctx), full, token); err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}, nil
}

func (s *Store) unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, s.rdb, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
