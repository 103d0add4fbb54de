package domain

import "time"

// DefaultQuizDuration applies when a quiz is started without a duration.
const DefaultQuizDuration = 60

// QuizWindow is the global exam-mode record. Revision increases on every
// start or stop; revision 0 means no quiz was ever started.
type QuizWindow struct {
	Revision        int64     `json:"revision"`
	IsActive        bool      `json:"is_active"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Remaining is the whole-second time left in a window that started at start
// and lasts durationMinutes, evaluated at now. Both instants are compared in
// UTC and the result is never negative.
func Remaining(now, start time.Time, durationMinutes int) time.Duration {
	end := start.UTC().Add(time.Duration(durationMinutes) * time.Minute)
	left := end.Sub(now.UTC()).Truncate(time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Remaining evaluates the window's time left at now.
func (w QuizWindow) Remaining(now time.Time) time.Duration {
	if w.Revision == 0 {
		return 0
	}
	return Remaining(now, w.StartTime, w.DurationMinutes)
}

// OpenAt reports whether answers are accepted at now. An expired window is
// closed even while IsActive is still set.
func (w QuizWindow) OpenAt(now time.Time) bool {
	return w.IsActive && w.Remaining(now) > 0
}

// EndsAt is the instant the window expires.
func (w QuizWindow) EndsAt() time.Time {
	return w.StartTime.UTC().Add(time.Duration(w.DurationMinutes) * time.Minute)
}
