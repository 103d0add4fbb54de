package app

import (
	"context"
	"time"

	"ctf-quiz-service/internal/domain"
)

// SessionService manages play-throughs and final scoring.
type SessionService struct {
	sessions SessionRepository
	board    *LeaderboardService
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository, board *LeaderboardService) *SessionService {
	return &SessionService{sessions: sessions, board: board, now: time.Now}
}

// WithClock is test-only for deterministic timestamps.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// StartSession opens a new session and makes it the user's current one.
func (s *SessionService) StartSession(ctx context.Context, userID int64) (domain.QuizSession, error) {
	return s.sessions.CreateSession(ctx, userID, s.now().UTC())
}

// FinishSession recomputes the session score from its correct responses and
// marks it complete. Only the owner may finish a session.
func (s *SessionService) FinishSession(ctx context.Context, userID, sessionID int64) (domain.QuizSession, error) {
	if sessionID <= 0 {
		return domain.QuizSession{}, domain.Invalid("sessionId is required")
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if session.UserID != userID {
		return domain.QuizSession{}, domain.ErrSessionNotOwned
	}

	completed, err := s.sessions.CompleteSession(ctx, sessionID, s.now().UTC())
	if err != nil {
		return domain.QuizSession{}, err
	}
	_ = s.board.Refresh(ctx)
	return completed, nil
}

// Leaderboard returns the cumulative top scores.
func (s *SessionService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return s.board.Top(ctx)
}
