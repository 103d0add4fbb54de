package app

import (
	"context"
	"sync"
	"time"

	"ctf-quiz-service/internal/domain"
)

// LeaderboardService serves the cumulative leaderboard and pushes updates to
// live subscribers after every score change.
type LeaderboardService struct {
	repo LeaderboardRepository
	feed *LeaderboardFeed
	now  func() time.Time
}

func NewLeaderboardService(repo LeaderboardRepository) *LeaderboardService {
	return &LeaderboardService{repo: repo, feed: NewLeaderboardFeed(), now: time.Now}
}

// Top returns the ranked entries: non-admin users by total score across all sessions.
func (s *LeaderboardService) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.repo.GetLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

// Refresh drops cached totals and, when someone is listening, publishes a fresh snapshot.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	s.repo.Invalidate(ctx)
	if !s.feed.hasSubscribers() {
		return nil
	}
	entries, err := s.Top(ctx)
	if err != nil {
		return err
	}
	s.feed.publish(domain.Leaderboard{Entries: entries, UpdatedAt: s.now()})
	return nil
}

// Subscribe returns a channel that receives the current leaderboard and every update after it.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	entries, err := s.Top(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.subscribe(domain.Leaderboard{Entries: entries, UpdatedAt: s.now()})
	return ch, cancel, nil
}

// LeaderboardFeed fans snapshots out to subscribers. Slow subscribers only
// ever see the latest snapshot.
type LeaderboardFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

func (f *LeaderboardFeed) subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *LeaderboardFeed) hasSubscribers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) > 0
}

func (f *LeaderboardFeed) publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// full buffer: drop the oldest queued snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
