package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLocker guards schedule executions across processes. Acquire is
// best-effort advisory: the database compare-and-set on the schedule row is
// the authoritative gate, this layer just avoids burning workers on runs that
// another instance already picked up.
type RunLocker interface {
	// Acquire takes the lock for a schedule; false means it is held elsewhere.
	Acquire(ctx context.Context, scheduleID string) (bool, error)
	// Release frees the lock. Releasing an unheld lock is a no-op.
	Release(ctx context.Context, scheduleID string) error
}

type redisRunLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (l *redisRunLocker) Acquire(ctx context.Context, scheduleID string) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+":"+scheduleID, "1", l.ttl).Result()
}

func (l *redisRunLocker) Release(ctx context.Context, scheduleID string) error {
	return l.client.Del(ctx, l.prefix+":"+scheduleID).Err()
}

type memoryRunLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
}

func newMemoryRunLocker(ttl time.Duration) *memoryRunLocker {
	return &memoryRunLocker{
		held: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (l *memoryRunLocker) Acquire(_ context.Context, scheduleID string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.held[scheduleID]; ok && exp.After(now) {
		return false, nil
	}
	l.held[scheduleID] = now.Add(l.ttl)
	return true, nil
}

func (l *memoryRunLocker) Release(_ context.Context, scheduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, scheduleID)
	return nil
}

// NewRunLocker builds a Redis locker and falls back to in-memory when no
// address is configured or Redis is unreachable. The TTL caps how long a
// crashed holder can block a schedule.
func NewRunLocker(addr, pass string, db int, ttl time.Duration) (RunLocker, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryRunLocker(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryRunLocker(ttl), err
	}

	return &redisRunLocker{
		client: client,
		prefix: "report:run",
		ttl:    ttl,
	}, nil
}
