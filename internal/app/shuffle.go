package app

import (
	"math/rand"
	"sync"
	"time"
)

// Shuffler reorders slices uniformly (Fisher-Yates via rand.Shuffle). Safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewShuffler(seed int64) *Shuffler {
	return &Shuffler{rnd: rand.New(rand.NewSource(seed))}
}

func newTimeSeededShuffler() *Shuffler {
	return NewShuffler(time.Now().UnixNano())
}

func shuffle[T any](s *Shuffler, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
