package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

type cacheEntry struct {
	Result   Result    `json:"result"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache keeps normalized results in the shared store under tracking:<id>.
// Live results, manual overrides and cancellation marks all share it, so
// whichever was written last is served until the TTL lapses.
type Cache struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewCache(st store.Store, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: st, ttl: ttl, now: now}
}

func cacheKey(id string) string { return store.Key("tracking", id) }

// Get returns the fresh entry for id. A missing, expired or unreadable entry
// is reported as a miss.
func (c *Cache) Get(ctx context.Context, id string) (*Result, bool, error) {
	var entry cacheEntry
	err := store.GetJSON(ctx, c.store, cacheKey(id), &entry)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, false, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, false, err
		}
		// a corrupt entry is overwritten by the next Put
		return nil, false, nil
	}

	if c.now().Sub(entry.CachedAt) >= c.ttl {
		return nil, false, nil
	}
	return &entry.Result, true, nil
}

func (c *Cache) Put(ctx context.Context, id string, result Result) error {
	entry := cacheEntry{Result: result, CachedAt: c.now().UTC()}
	if err := store.SetJSON(ctx, c.store, cacheKey(id), entry); err != nil {
		return fmt.Errorf("repository: failed to cache tracking result for %s: %w", id, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, cacheKey(id)); err != nil {
		return fmt.Errorf("repository: failed to clear tracking entry for %s: %w", id, err)
	}
	return nil
}
