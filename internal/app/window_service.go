package app

import (
	"context"
	"time"

	"ctf-quiz-service/internal/domain"
)

// WindowStatus is the quiz window plus values derived at evaluation time.
type WindowStatus struct {
	domain.QuizWindow
	RemainingSeconds int64 `json:"remaining_seconds"`
	Open             bool  `json:"open"`
}

// WindowService controls the global timed quiz window. Expiry is evaluated
// lazily on every call; nothing flips the stored flag when time runs out.
type WindowService struct {
	windows         WindowRepository
	defaultDuration int
	now             func() time.Time
}

func NewWindowService(windows WindowRepository, defaultDuration int) *WindowService {
	if defaultDuration <= 0 {
		defaultDuration = domain.DefaultQuizDuration
	}
	return &WindowService{windows: windows, defaultDuration: defaultDuration, now: time.Now}
}

// WithClock is used by tests for deterministic timestamps.
func (s *WindowService) WithClock(now func() time.Time) *WindowService {
	s.now = now
	return s
}

// Start opens a fresh window of durationMinutes (0 selects the default).
func (s *WindowService) Start(ctx context.Context, durationMinutes int) (WindowStatus, error) {
	if durationMinutes < 0 {
		return WindowStatus{}, domain.Invalid("duration must not be negative, got %d", durationMinutes)
	}
	if durationMinutes == 0 {
		durationMinutes = s.defaultDuration
	}
	now := s.now().UTC()
	w, err := s.windows.StartWindow(ctx, now, durationMinutes)
	if err != nil {
		return WindowStatus{}, err
	}
	return s.status(w, now), nil
}

// Stop deactivates the current window. Without a window it reports the inactive default.
func (s *WindowService) Stop(ctx context.Context) (WindowStatus, error) {
	now := s.now().UTC()
	w, _, err := s.windows.StopWindow(ctx, now)
	if err != nil {
		return WindowStatus{}, err
	}
	return s.status(w, now), nil
}

// Status returns the latest window, or an inactive default.
func (s *WindowService) Status(ctx context.Context) (WindowStatus, error) {
	w, _, err := s.windows.CurrentWindow(ctx)
	if err != nil {
		return WindowStatus{}, err
	}
	return s.status(w, s.now()), nil
}

// EnsureOpen fails with ErrQuizClosed unless the window is active and unexpired.
func (s *WindowService) EnsureOpen(ctx context.Context) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if !st.Open {
		return domain.ErrQuizClosed
	}
	return nil
}

func (s *WindowService) status(w domain.QuizWindow, now time.Time) WindowStatus {
	if w.Revision == 0 {
		w.DurationMinutes = s.defaultDuration
	}
	remaining := w.Remaining(now)
	return WindowStatus{
		QuizWindow:       w,
		RemainingSeconds: int64(remaining / time.Second),
		Open:             w.IsActive && remaining > 0,
	}
}
