// Package lease serializes edits of one document across goroutines and
// server processes. A lease is held for the duration of a single edit.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrHeld is returned when another editor holds the document's lease
	ErrHeld = errors.New("lease: document is being edited")

	// ErrLost is returned on release when the lease expired or was taken over
	ErrLost = errors.New("lease: lease lost before release")
)

// Locker hands out per-document leases
type Locker interface {
	Acquire(ctx context.Context, docID string) (Lease, error)
}

// Lease is a held document lease
type Lease interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only when it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX keys
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to redisURL and returns a Locker whose leases expire after ttl
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient creates a Locker from an existing Redis client
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: "parajoin:lease:",
		ttl:    ttl,
	}
}

func (r *Redis) key(docID string) string {
	return r.prefix + docID
}

// Acquire takes the document's lease or fails with ErrHeld
func (r *Redis) Acquire(ctx context.Context, docID string) (Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key(docID), token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", docID, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: r.client, key: r.key(docID), token: token}, nil
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

// Local implements Locker inside one process
type Local struct {
	mu   sync.Mutex
	held map[string]string
}

// NewLocal creates an in-process Locker
func NewLocal() *Local {
	return &Local{held: make(map[string]string)}
}

// Acquire takes the document's lease or fails with ErrHeld
func (l *Local) Acquire(ctx context.Context, docID string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[docID]; ok {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	l.held[docID] = token
	return &localLease{owner: l, docID: docID, token: token}, nil
}

type localLease struct {
	owner *Local
	docID string
	token string
}

func (l *localLease) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if l.owner.held[l.docID] != l.token {
		return ErrLost
	}
	delete(l.owner.held, l.docID)
	return nil
}
