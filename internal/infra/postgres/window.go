package postgres

import (
	"context"
	"time"

	"ctf-quiz-service/internal/domain"
)

const windowID = 1

func (s *Store) CurrentWindow(ctx context.Context) (domain.QuizWindow, bool, error) {
	m := new(windowModel)
	err := s.db.NewSelect().Model(m).Where("w.id = ?", windowID).Scan(ctx)
	if err != nil {
		if err = mapErr("get window", err, domain.ErrNotFound, nil); isNotFound(err) {
			return domain.QuizWindow{}, false, nil
		}
		return domain.QuizWindow{}, false, err
	}
	return m.toDomain(), true, nil
}

// StartWindow is a single upsert on the singleton row, so concurrent starts
// each get their own revision and the last writer wins.
func (s *Store) StartWindow(ctx context.Context, start time.Time, durationMinutes int) (domain.QuizWindow, error) {
	m := new(windowModel)
	err := s.db.NewRaw(`
INSERT INTO quiz_window (id, revision, is_active, start_time, duration_minutes, updated_at)
VALUES (?, 1, TRUE, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    revision = quiz_window.revision + 1,
    is_active = TRUE,
    start_time = EXCLUDED.start_time,
    duration_minutes = EXCLUDED.duration_minutes,
    updated_at = EXCLUDED.updated_at
RETURNING id, revision, is_active, start_time, duration_minutes, updated_at`,
		windowID, start.UTC(), durationMinutes, start.UTC(),
	).Scan(ctx, m)
	if err != nil {
		return domain.QuizWindow{}, mapErr("start window", err, nil, nil)
	}
	return m.toDomain(), nil
}

func (s *Store) StopWindow(ctx context.Context, at time.Time) (domain.QuizWindow, bool, error) {
	m := new(windowModel)
	err := s.db.NewRaw(`
UPDATE quiz_window SET revision = revision + 1, is_active = FALSE, updated_at = ?
WHERE id = ?
RETURNING id, revision, is_active, start_time, duration_minutes, updated_at`,
		at.UTC(), windowID,
	).Scan(ctx, m)
	if err != nil {
		if err = mapErr("stop window", err, domain.ErrNotFound, nil); isNotFound(err) {
			return domain.QuizWindow{}, false, nil
		}
		return domain.QuizWindow{}, false, err
	}
	return m.toDomain(), true, nil
}
