package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrRunInProgress = errors.New("a crawl run is already in progress")

// Locker guards the one-active-run rule. TryLock never blocks: it returns
// ErrRunInProgress when another run holds the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), err error)
}

// RunLock combines an in-process mutex with a file lock, so a second engine
// or an `engine crawl` on the same data dir is refused as well.
type RunLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

// NewRunLock locks path across processes; an empty path gives an
// in-process lock only.
func NewRunLock(path string) *RunLock {
	l := &RunLock{}
	if path != "" {
		l.file = flock.New(path)
	}
	return l
}

func (l *RunLock) TryLock(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	if l.file != nil {
		ok, err := l.file.TryLock()
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("crawl lock %s: %w", l.file.Path(), err)
		}
		if !ok {
			l.mu.Unlock()
			return nil, ErrRunInProgress
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if l.file != nil {
				_ = l.file.Unlock()
			}
			l.mu.Unlock()
		})
	}, nil
}

const DefaultRedisLockKey = "jhunt:crawl:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock extends a local lock across hosts sharing one redis. The key
// expires after ttl so a crashed holder cannot wedge the crawl forever.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	local  Locker
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration, local Locker) *RedisLock {
	if key == "" {
		key = DefaultRedisLockKey
	}
	if local == nil {
		local = NewRunLock("")
	}
	return &RedisLock{client: client, key: key, ttl: ttl, local: local}
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func (l *RedisLock) TryLock(ctx context.Context) (func(), error) {
	releaseLocal, err := l.local.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		releaseLocal()
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// the run context may already be done at release time
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{l.key}, token).Err()
			releaseLocal()
		})
	}, nil
}
