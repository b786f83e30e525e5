package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SendLog remembers recent deliveries for cooldown and dedupe checks.
type SendLog interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// MemorySendLog is a process-local SendLog.
type MemorySendLog struct {
	mu      sync.Mutex
	clock   Clock
	expires map[string]time.Time
}

// NewMemorySendLog constructs a memory send log.
func NewMemorySendLog(clock Clock) *MemorySendLog {
	if clock == nil {
		clock = systemClock{}
	}
	return &MemorySendLog{clock: clock, expires: make(map[string]time.Time)}
}

// Seen reports whether key was marked and has not expired.
func (l *MemorySendLog) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.expires[key]
	if !ok {
		return false, nil
	}
	if !l.clock.Now().Before(expiry) {
		delete(l.expires, key)
		return false, nil
	}
	return true, nil
}

// Mark records key for ttl.
func (l *MemorySendLog) Mark(_ context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires[key] = l.clock.Now().Add(ttl)
	return nil
}

const redisKeyPrefix = "roomguard:notify:"

// RedisSendLog shares the send log across replicas.
type RedisSendLog struct {
	client redis.Cmdable
}

// NewRedisSendLog constructs a Redis-backed send log.
func NewRedisSendLog(client redis.Cmdable) (*RedisSendLog, error) {
	if client == nil {
		return nil, errors.New("redis send log: nil client")
	}
	return &RedisSendLog{client: client}, nil
}

// Seen reports whether key exists.
func (l *RedisSendLog) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark stores key with an expiry.
func (l *RedisSendLog) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return l.client.Set(ctx, redisKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Err()
}
