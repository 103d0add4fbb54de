package app

import (
	"context"
	"errors"
	"time"

	"ctf-quiz-service/internal/domain"
)

// UserRepository stores accounts. Duplicate username/email is ErrDuplicateUser.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// UpdateUser overwrites username, email and role; an empty PasswordHash keeps the stored one.
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
	// DeleteUser removes the user with their sessions and responses.
	DeleteUser(ctx context.Context, id int64) error
}

// CategoryRepository stores categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	// FindOrCreateCategory looks a category up by exact name and inserts it when absent.
	FindOrCreateCategory(ctx context.Context, name string) (domain.Category, error)
}

// QuestionRepository stores questions together with their options.
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	// UpdateQuestion diffs options by id: matched ids are updated, unmatched
	// stored options are deleted, options without a known id are inserted.
	UpdateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error
	// DeleteAllQuestions removes responses, sessions, options and questions.
	DeleteAllQuestions(ctx context.Context) error
}

// SessionRepository stores quiz sessions and their responses.
type SessionRepository interface {
	// CreateSession inserts a session and makes it the user's current open session.
	CreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error)
	// CurrentOrCreateSession returns the user's current open session, creating one atomically if none is set.
	CurrentOrCreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error)
	GetSession(ctx context.Context, id int64) (domain.QuizSession, error)
	// RecordResponse inserts the response and, when correct, adds points to the
	// session score in the same unit of work. A second response for the same
	// (session, question) fails with ErrAlreadyAnswered.
	RecordResponse(ctx context.Context, response domain.UserResponse, points int) (domain.UserResponse, error)
	// ResponsesByUser returns responses across all of the user's sessions.
	ResponsesByUser(ctx context.Context, userID int64) ([]domain.UserResponse, error)
	// CompleteSession recomputes the score from correct responses, stamps completion,
	// persists the score and clears the user's current session pointer.
	CompleteSession(ctx context.Context, sessionID int64, completedAt time.Time) (domain.QuizSession, error)
}

// WindowRepository stores the singleton quiz window.
type WindowRepository interface {
	// CurrentWindow returns false when no quiz was ever started.
	CurrentWindow(ctx context.Context) (domain.QuizWindow, bool, error)
	// StartWindow atomically upserts an active window and bumps its revision.
	StartWindow(ctx context.Context, start time.Time, durationMinutes int) (domain.QuizWindow, error)
	// StopWindow clears the active flag; false when there is no window.
	StopWindow(ctx context.Context, at time.Time) (domain.QuizWindow, bool, error)
}

// LeaderboardLoader computes leaderboard totals from the backing store.
type LeaderboardLoader interface {
	LoadLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardRepository serves leaderboard totals, possibly from a cache.
type LeaderboardRepository interface {
	GetLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context)
}

// PasswordHasher hashes and verifies password credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// TokenIssuer signs bearer credentials.
type TokenIssuer interface {
	Issue(userID int64, role domain.Role) (string, error)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
