package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invoicing-backend/config"

	"github.com/redis/go-redis/v9"
)

const (
	DashboardKeyFmt = "dashboard:%s"
	DashboardTTL    = 5 * time.Minute
)

var client *redis.Client

// Init connects to Redis. On failure the client stays nil and every helper becomes a no-op.
func Init(cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

// SetClient swaps the client, mainly for tests.
func SetClient(c *redis.Client) {
	client = c
}

func Enabled() bool {
	return client != nil
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

func DashboardKey(businessID string) string {
	return fmt.Sprintf(DashboardKeyFmt, businessID)
}

// InvalidateBusiness drops every cached aggregate of one business. Under a context from
// DeferInvalidation the keys are only collected, and dropped by FlushInvalidation.
func InvalidateBusiness(ctx context.Context, businessID string) {
	if p, ok := ctx.Value(pendingCtxKey{}).(*pending); ok {
		p.add(DashboardKey(businessID))
		return
	}
	InvalidateKeys(ctx, DashboardKey(businessID))
}

type pendingCtxKey struct{}

type pending struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	parent *pending
}

func (p *pending) add(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		p.keys[k] = struct{}{}
	}
}

func (p *pending) take() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.keys))
	for k := range p.keys {
		out = append(out, k)
	}
	p.keys = map[string]struct{}{}
	return out
}

// DeferInvalidation holds invalidations made under the returned context until
// FlushInvalidation, so a transaction can drop its keys once it has committed.
func DeferInvalidation(ctx context.Context) context.Context {
	parent, _ := ctx.Value(pendingCtxKey{}).(*pending)
	return context.WithValue(ctx, pendingCtxKey{}, &pending{keys: map[string]struct{}{}, parent: parent})
}

// FlushInvalidation drops the keys collected since DeferInvalidation. Inside an outer
// deferred context they move up to it instead, to wait for the outer commit.
// Callers skip it when the transaction rolled back.
func FlushInvalidation(ctx context.Context) {
	p, ok := ctx.Value(pendingCtxKey{}).(*pending)
	if !ok {
		return
	}
	keys := p.take()
	if p.parent != nil {
		p.parent.add(keys...)
		return
	}
	InvalidateKeys(ctx, keys...)
}
