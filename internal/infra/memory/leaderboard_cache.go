package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/domain"
)

const leaderboardKey = "top"

// LeaderboardCache caches leaderboard totals with TTL to avoid repeated
// aggregation queries. Invalidate drops the entry after score changes.
type LeaderboardCache struct {
	loader app.LeaderboardLoader
	limit  int
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
	// generation guards against a slow load repopulating after Invalidate
	generation uint64
}

func NewLeaderboardCache(loader app.LeaderboardLoader, limit int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		loader: loader,
		limit:  limit,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.cached(); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(leaderboardKey, func() (interface{}, error) {
		if entries, ok := c.cached(); ok {
			return entries, nil
		}
		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		entries, err := c.loader.LoadLeaderboard(ctx, c.limit)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if gen == c.generation {
			c.entries = entries
			c.expiresAt = c.clock().Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(result.([]domain.LeaderboardEntry)), nil
}

func (c *LeaderboardCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.entries = nil
	c.expiresAt = time.Time{}
	c.generation++
	c.mu.Unlock()
	c.sf.Forget(leaderboardKey)
}

func (c *LeaderboardCache) cached() ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries != nil && c.expiresAt.After(c.clock()) {
		return cloneEntries(c.entries), true
	}
	return nil, false
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	return append([]domain.LeaderboardEntry{}, entries...)
}
