package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/domain"
)

// DefaultKey holds the serialized top entries.
const DefaultKey = "leaderboard:top"

// LeaderboardCache caches leaderboard totals in Redis and falls back to a loader on cache miss.
// Entries are stored as: SET leaderboard:top <json> EX <ttl>
// Redis being unavailable degrades to reading through the loader.
type LeaderboardCache struct {
	client *redis.Client
	loader app.LeaderboardLoader
	key    string
	limit  int
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
	// generation is bumped by Invalidate; a load that spans a bump must not
	// leave its board behind
	generation uint64
}

func NewLeaderboardCache(client *redis.Client, loader app.LeaderboardLoader, limit int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		loader: loader,
		key:    DefaultKey,
		limit:  limit,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.cached(ctx); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(c.key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entries, ok := c.cached(ctx); ok {
			return entries, nil
		}

		gen := c.currentGeneration()
		entries, err := c.loader.LoadLeaderboard(ctx, c.limit)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []domain.LeaderboardEntry{}
		}

		if gen != c.currentGeneration() {
			return entries, nil
		}
		payload, err := json.Marshal(cachedBoard{Entries: entries})
		if err == nil {
			_ = c.client.Set(ctx, c.key, payload, c.ttlWithJitter()).Err()
			// Invalidate may have deleted the key between the check and the SET
			if gen != c.currentGeneration() {
				_ = c.client.Del(ctx, c.key).Err()
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.LeaderboardEntry{}, result.([]domain.LeaderboardEntry)...), nil
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
	_ = c.client.Del(ctx, c.key).Err()
	c.sf.Forget(c.key)
}

// cachedBoard keeps user ids, which the public JSON form of an entry omits.
type cachedBoard struct {
	Entries []domain.LeaderboardEntry `json:"-"`
}

type cachedEntry struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	GrandTotal int    `json:"grand_total"`
}

func (b cachedBoard) MarshalJSON() ([]byte, error) {
	out := make([]cachedEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		out = append(out, cachedEntry{UserID: e.UserID, Username: e.Username, GrandTotal: e.GrandTotal})
	}
	return json.Marshal(out)
}

func (b *cachedBoard) UnmarshalJSON(data []byte) error {
	var in []cachedEntry
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.Entries = make([]domain.LeaderboardEntry, 0, len(in))
	for _, e := range in {
		b.Entries = append(b.Entries, domain.LeaderboardEntry{UserID: e.UserID, Username: e.Username, GrandTotal: e.GrandTotal})
	}
	return nil
}

func (c *LeaderboardCache) cached(ctx context.Context) ([]domain.LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		// redis.Nil and connection errors alike fall through to the loader
		return nil, false
	}
	var board cachedBoard
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, false
	}
	return board.Entries, true
}

func (c *LeaderboardCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
