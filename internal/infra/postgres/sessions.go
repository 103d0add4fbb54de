package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ctf-quiz-service/internal/domain"
)

func (s *Store) CreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	var created domain.QuizSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getUser(ctx, tx, userID, true); err != nil {
			return err
		}
		var err error
		created, err = insertCurrentSession(ctx, tx, userID, startedAt)
		return err
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return created, nil
}

// CurrentOrCreateSession locks the user row so concurrent first answers
// resolve to the same session.
func (s *Store) CurrentOrCreateSession(ctx context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	var current domain.QuizSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := getUser(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		if user.CurrentSessionID != nil {
			session, err := getSession(ctx, tx, *user.CurrentSessionID)
			if err == nil && session.Open() {
				current = session
				return nil
			}
			if err != nil && !isNotFound(err) {
				return err
			}
		}
		current, err = insertCurrentSession(ctx, tx, userID, startedAt)
		return err
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return current, nil
}

func insertCurrentSession(ctx context.Context, tx bun.Tx, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	m := &sessionModel{UserID: userID, StartedAt: startedAt.UTC()}
	if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
		return domain.QuizSession{}, mapErr("insert session", err, nil, nil)
	}
	_, err := tx.NewUpdate().
		Model((*userModel)(nil)).
		Set("current_session_id = ?", m.ID).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return domain.QuizSession{}, mapErr("set current session", err, nil, nil)
	}
	return m.toDomain(), nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (domain.QuizSession, error) {
	return getSession(ctx, s.db, id)
}

func getSession(ctx context.Context, db bun.IDB, id int64) (domain.QuizSession, error) {
	m := new(sessionModel)
	if err := db.NewSelect().Model(m).Where("s.id = ?", id).Scan(ctx); err != nil {
		return domain.QuizSession{}, mapErr("get session", err, domain.ErrSessionNotFound, nil)
	}
	return m.toDomain(), nil
}

// RecordResponse inserts the response and bumps the running score in one
// transaction. The session row is locked first so a concurrent
// CompleteSession either sees the response or rejects it. The
// (session_id, question_id) unique key decides concurrent duplicates.
func (s *Store) RecordResponse(ctx context.Context, response domain.UserResponse, points int) (domain.UserResponse, error) {
	m := &responseModel{
		SessionID:  response.SessionID,
		QuestionID: response.QuestionID,
		IsCorrect:  response.IsCorrect,
		CreatedAt:  response.CreatedAt.UTC(),
	}
	if response.SelectedOptionID != 0 {
		id := response.SelectedOptionID
		m.SelectedOptionID = &id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session := new(sessionModel)
		if err := tx.NewSelect().Model(session).Where("s.id = ?", m.SessionID).For("UPDATE").Scan(ctx); err != nil {
			return mapErr("lock session", err, domain.ErrSessionNotFound, nil)
		}
		if session.CompletedAt != nil {
			return domain.ErrSessionClosed
		}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrQuestionNotFound
			}
			return mapErr("insert response", err, nil, domain.ErrAlreadyAnswered)
		}
		if !m.IsCorrect {
			return nil
		}
		_, err := tx.NewUpdate().
			Model((*sessionModel)(nil)).
			Set("total_score = total_score + ?", points).
			Where("id = ?", m.SessionID).
			Exec(ctx)
		return mapErr("add score", err, nil, nil)
	})
	if err != nil {
		return domain.UserResponse{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) ResponsesByUser(ctx context.Context, userID int64) ([]domain.UserResponse, error) {
	var models []responseModel
	err := s.db.NewSelect().
		Model(&models).
		Join("JOIN quiz_sessions AS s ON s.id = r.session_id").
		Where("s.user_id = ?", userID).
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list responses", err, nil, nil)
	}
	out := make([]domain.UserResponse, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// CompleteSession recomputes the score from stored responses, so it is safe to repeat.
func (s *Store) CompleteSession(ctx context.Context, sessionID int64, completedAt time.Time) (domain.QuizSession, error) {
	var completed domain.QuizSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := new(sessionModel)
		if err := tx.NewSelect().Model(m).Where("s.id = ?", sessionID).For("UPDATE").Scan(ctx); err != nil {
			return mapErr("lock session", err, domain.ErrSessionNotFound, nil)
		}

		var score int
		err := tx.NewSelect().
			TableExpr("user_responses AS r").
			Join("JOIN questions AS q ON q.id = r.question_id").
			ColumnExpr("COALESCE(SUM(q.points), 0)").
			Where("r.session_id = ?", sessionID).
			Where("r.is_correct").
			Scan(ctx, &score)
		if err != nil {
			return mapErr("sum score", err, nil, nil)
		}

		at := completedAt.UTC()
		m.CompletedAt = &at
		m.TotalScore = score
		if _, err := tx.NewUpdate().Model(m).Column("completed_at", "total_score").WherePK().Exec(ctx); err != nil {
			return mapErr("complete session", err, nil, nil)
		}
		_, err = tx.NewUpdate().
			Model((*userModel)(nil)).
			Set("current_session_id = NULL").
			Where("id = ?", m.UserID).
			Where("current_session_id = ?", sessionID).
			Exec(ctx)
		if err != nil {
			return mapErr("clear current session", err, nil, nil)
		}
		completed = m.toDomain()
		return nil
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return completed, nil
}
