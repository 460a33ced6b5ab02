// Package redis is a shared session cache for multi-instance deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/tether/core"
)

const (
	DefaultPrefix = "tether:session:"
	DefaultTTL    = 5 * time.Minute
)

var (
	ErrParseURL = errors.New("failed to parse redis connection string")
	ErrNotReady = errors.New("redis did not become ready")
)

var _ core.Cache = (*Cache)(nil)

// Cache stores sessions under prefix+tokenHash. Entries never outlive the
// session they hold.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Cache)

func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(client redis.UniversalClient, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		client: client,
		prefix: DefaultPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect parses url and pings until the server answers or attempts run out.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrParseURL, err)
	}

	for range max(attempts, 1) {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrNotReady
}

// record is the wire form. core.Session hides TokenHash from JSON.
type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func encode(s *core.Session) ([]byte, error) {
	return json.Marshal(record{
		ID:        s.ID,
		UserID:    s.UserID,
		TokenHash: s.TokenHash,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	})
}

func decode(data []byte) (*core.Session, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &core.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}, nil
}

// entryTTL caps the cache TTL at the session's remaining lifetime.
func entryTTL(now, expiresAt time.Time, ttl time.Duration) time.Duration {
	return min(ttl, expiresAt.Sub(now))
}

func (c *Cache) key(tokenHash string) string {
	return c.prefix + tokenHash
}

func (c *Cache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	data, err := c.client.Get(ctx, c.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	s, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return s, nil
}

func (c *Cache) Set(ctx context.Context, tokenHash string, session *core.Session) error {
	ttl := entryTTL(c.now(), session.ExpiresAt, c.ttl)
	if ttl <= 0 {
		return c.Delete(ctx, tokenHash)
	}
	data, err := encode(session)
	if err != nil {
		return fmt.Errorf("session cache: encode: %w", err)
	}
	return c.client.Set(ctx, c.key(tokenHash), data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, c.key(tokenHash)).Err()
}

// Clear removes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
