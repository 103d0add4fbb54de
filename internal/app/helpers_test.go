package app_test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/auth"
	"ctf-quiz-service/internal/domain"
	"ctf-quiz-service/internal/infra/memory"
)

// fixture wires every service against one memory store and a controllable clock.
type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	window   *app.WindowService
	board    *app.LeaderboardService
	quiz     *app.QuizService
	sessions *app.SessionService
	content  *app.ContentService
	users    *app.UserService
	tokens   *auth.TokenManager
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	board := app.NewLeaderboardService(memory.NewLeaderboardCache(store, 10, time.Minute))
	window := app.NewWindowService(store, domain.DefaultQuizDuration).WithClock(clock.Now)
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	tokens.WithClock(clock.Now)

	return &fixture{
		store:    store,
		clock:    clock,
		window:   window,
		board:    board,
		quiz:     app.NewQuizService(store, store, window, board).WithClock(clock.Now).WithShuffler(app.NewShuffler(1)),
		sessions: app.NewSessionService(store, board).WithClock(clock.Now),
		content:  app.NewContentService(store, store, board),
		users:    app.NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, board),
		tokens:   tokens,
	}
}

func (f *fixture) register(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), app.UserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (f *fixture) category(t *testing.T, name string) domain.Category {
	t.Helper()
	c, err := f.content.CreateCategory(context.Background(), name, "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

// question creates a two-option question whose second option is correct.
func (f *fixture) question(t *testing.T, categoryID int64, content string, points int) domain.Question {
	t.Helper()
	q, err := f.content.CreateQuestion(context.Background(), app.QuestionInput{
		CategoryID:         categoryID,
		Content:            content,
		Difficulty:         "EASY",
		Points:             points,
		Options:            []string{"wrong", "right"},
		CorrectOptionIndex: 1,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func correctOption(q domain.Question) int64 {
	for _, o := range q.Options {
		if o.Correct {
			return o.ID
		}
	}
	return 0
}

func wrongOption(q domain.Question) int64 {
	for _, o := range q.Options {
		if !o.Correct {
			return o.ID
		}
	}
	return 0
}

func (f *fixture) openQuiz(t *testing.T, minutes int) {
	t.Helper()
	if _, err := f.window.Start(context.Background(), minutes); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
}
