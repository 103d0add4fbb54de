package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ctf-quiz-service/internal/domain"
)

func TestLeaderboardCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{entries: sampleEntries()}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)

	entries, err := cache.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.count())
	}
	if !mr.Exists(DefaultKey) {
		t.Fatalf("expected %s to be written", DefaultKey)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := cache.GetLeaderboard(context.Background())
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	if len(cached) != len(entries) || cached[0].UserID != 1 || cached[0].GrandTotal != 40 {
		t.Fatalf("cached entries differ: %+v", cached)
	}
}

func TestLeaderboardInvalidateDeletesKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{entries: sampleEntries()}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)
	ctx := context.Background()

	_, _ = cache.GetLeaderboard(ctx)
	cache.Invalidate(ctx)
	if mr.Exists(DefaultKey) {
		t.Fatalf("expected key removed")
	}
	_, _ = cache.GetLeaderboard(ctx)
	if loader.count() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.count())
	}
}

func TestLeaderboardLoadOverlappingInvalidateIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &blockingLoader{
		entries: sampleEntries(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, time.Minute)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetLeaderboard(ctx)
		done <- err
	}()

	<-loader.started
	cache.Invalidate(ctx)
	close(loader.release)
	if err := <-done; err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if mr.Exists(DefaultKey) {
		t.Fatalf("board loaded before invalidate must not be cached")
	}
}

func TestLeaderboardExpiresWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{entries: sampleEntries()}
	cache := NewLeaderboardCache(newClient(mr), loader, 10, 10*time.Second)
	ctx := context.Background()

	_, _ = cache.GetLeaderboard(ctx)
	mr.FastForward(12 * time.Second)
	_, _ = cache.GetLeaderboard(ctx)
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.count())
	}
}

func TestLeaderboardFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	loader := &countingLoader{entries: sampleEntries()}
	cache := NewLeaderboardCache(client, loader, 10, time.Minute)
	entries, err := cache.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

type countingLoader struct {
	mu      sync.Mutex
	calls   int
	entries []domain.LeaderboardEntry
}

func (l *countingLoader) LoadLeaderboard(context.Context, int) ([]domain.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.entries, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// blockingLoader holds the first load until release is closed.
type blockingLoader struct {
	once    sync.Once
	entries []domain.LeaderboardEntry
	started chan struct{}
	release chan struct{}
}

func (l *blockingLoader) LoadLeaderboard(context.Context, int) ([]domain.LeaderboardEntry, error) {
	l.once.Do(func() { close(l.started) })
	<-l.release
	return l.entries, nil
}

func sampleEntries() []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{
		{UserID: 1, Username: "alice", GrandTotal: 40},
		{UserID: 2, Username: "bob", GrandTotal: 25},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
