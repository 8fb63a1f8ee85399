package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when another instance holds the ledger lock for too long.
var ErrLockTimeout = errors.New("reminders: ledger lock timeout")

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockWait  = 10 * time.Second
	lockPollInterval = 100 * time.Millisecond
)

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps the ledger as a JSON string under a single key and guards
// read-modify-write cycles with a SETNX lock.
type RedisStore struct {
	client   redis.UniversalClient
	key      string
	lockTTL  time.Duration
	lockWait time.Duration
}

// NewRedisStore returns a store using key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if client == nil {
		panic("reminders: redis client required")
	}
	return &RedisStore{
		client:   client,
		key:      key,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
}

func (r *RedisStore) lockKey() string { return r.key + ":lock" }

func (r *RedisStore) Load(ctx context.Context) (Ledger, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Ledger{}, nil
		}
		return nil, fmt.Errorf("reminders: redis get: %w", err)
	}
	return Decode(data)
}

func (r *RedisStore) Save(ctx context.Context, ledger Ledger) error {
	data, err := Encode(ledger)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("reminders: redis set: %w", err)
	}
	return nil
}

// Lock acquires the ledger lock, polling until lockWait elapses.
func (r *RedisStore) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.lockWait)
	for {
		ok, err := r.client.SetNX(ctx, r.lockKey(), token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("reminders: redis setnx: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	return func() {
		// The caller's context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseLock.Run(releaseCtx, r.client, []string{r.lockKey()}, token).Err()
	}, nil
}
