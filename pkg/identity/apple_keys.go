package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/time/rate"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/metrics"
)

const (
	DefaultAppleKeysURL = "https://appleid.apple.com/auth/keys"
	DefaultAppleKeysTTL = time.Hour

	maxKeySetBytes = 1 << 20
)

// KeySet caches a remote JSON Web Key Set.
//
// Keys are refetched after ttl. A lookup for an unknown kid forces at most one
// refetch, and forced refetches are throttled by limiter.
type KeySet struct {
	url      string
	client   *http.Client
	ttl      time.Duration
	now      func() time.Time
	limiter  *rate.Limiter
	provider string
	rec      metrics.Recorder

	mu        sync.Mutex
	keys      *jose.JSONWebKeySet
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client, ttl time.Duration, now func() time.Time, provider string, rec metrics.Recorder) *KeySet {
	if ttl <= 0 {
		ttl = DefaultAppleKeysTTL
	}
	if now == nil {
		now = time.Now
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &KeySet{
		url:      url,
		client:   client,
		ttl:      ttl,
		now:      now,
		limiter:  rate.NewLimiter(rate.Every(time.Minute), 1),
		provider: provider,
		rec:      rec,
	}
}

// Key returns the public key for kid.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	fetched := false
	if k.keys == nil || k.now().Sub(k.fetchedAt) >= k.ttl {
		if err := k.refresh(ctx); err != nil {
			return nil, err
		}
		fetched = true
	}

	if key, ok := k.lookup(kid); ok {
		return key, nil
	}

	if !fetched && k.limiter.Allow() {
		if err := k.refresh(ctx); err != nil {
			return nil, err
		}
		if key, ok := k.lookup(kid); ok {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w: kid %q", core.ErrKeyNotFound, kid)
}

func (k *KeySet) lookup(kid string) (any, bool) {
	if kid == "" || k.keys == nil {
		return nil, false
	}
	for _, key := range k.keys.Key(kid) {
		if key.Valid() && key.IsPublic() {
			return key.Key, true
		}
	}
	return nil, false
}

// refresh must be called with mu held.
func (k *KeySet) refresh(ctx context.Context) error {
	set, err := k.fetch(ctx)
	if err != nil {
		k.rec.RecordKeyFetch(k.provider, "error")
		return fmt.Errorf("%w: %s keys: %w", core.ErrProviderUnavailable, k.provider, err)
	}
	k.rec.RecordKeyFetch(k.provider, "ok")
	k.keys = set
	k.fetchedAt = k.now()
	return nil
}

func (k *KeySet) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}
	return &set, nil
}
