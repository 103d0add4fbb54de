package app

import (
	"context"
	"errors"
	"time"

	"ctf-quiz-service/internal/domain"
)

// OptionView is an option as shown to participants: never the correctness flag.
type OptionView struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// QuestionView is a question as listed to participants.
type QuestionView struct {
	ID         int64               `json:"id"`
	CategoryID *int64              `json:"category_id"`
	Category   string              `json:"category"`
	Content    string              `json:"content"`
	Difficulty domain.Difficulty   `json:"difficulty"`
	Points     int                 `json:"points"`
	Options    []OptionView        `json:"options"`
	Status     domain.AnswerStatus `json:"status,omitempty"`
}

// AnswerResult is returned to the participant after a submission.
type AnswerResult struct {
	Message   string `json:"message"`
	IsCorrect bool   `json:"isCorrect"`
	SessionID int64  `json:"sessionId"`
}

// QuizService contains the participant-facing quiz use cases.
type QuizService struct {
	questions QuestionRepository
	sessions  SessionRepository
	window    *WindowService
	board     *LeaderboardService
	shuffler  *Shuffler
	now       func() time.Time
}

func NewQuizService(questions QuestionRepository, sessions SessionRepository, window *WindowService, board *LeaderboardService) *QuizService {
	return &QuizService{
		questions: questions,
		sessions:  sessions,
		window:    window,
		board:     board,
		shuffler:  newTimeSeededShuffler(),
		now:       time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// WithShuffler replaces the random source, e.g. with a fixed seed.
func (s *QuizService) WithShuffler(shuffler *Shuffler) *QuizService {
	s.shuffler = shuffler
	return s
}

// ListQuestions returns every question in a fresh random order with
// independently shuffled options. When callerID is set each question carries
// the caller's lifetime status across all of their sessions.
func (s *QuizService) ListQuestions(ctx context.Context, callerID *int64) ([]QuestionView, error) {
	questions, err := s.questions.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}

	var statuses map[int64]domain.AnswerStatus
	if callerID != nil {
		responses, err := s.sessions.ResponsesByUser(ctx, *callerID)
		if err != nil {
			return nil, err
		}
		statuses = answerStatuses(responses)
	}

	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		view := QuestionView{
			ID:         q.ID,
			CategoryID: q.CategoryID,
			Category:   q.CategoryName,
			Content:    q.Content,
			Difficulty: q.Difficulty,
			Points:     q.Points,
			Options:    make([]OptionView, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			view.Options = append(view.Options, OptionView{ID: o.ID, Content: o.Content})
		}
		shuffle(s.shuffler, view.Options)
		if statuses != nil {
			view.Status = domain.StatusUnanswered
			if st, ok := statuses[q.ID]; ok {
				view.Status = st
			}
		}
		views = append(views, view)
	}
	shuffle(s.shuffler, views)
	return views, nil
}

// SubmitAnswer records a one-shot answer against the user's current open
// session, creating the session when none is open.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID, questionID, optionID int64) (AnswerResult, error) {
	if questionID <= 0 || optionID <= 0 {
		return AnswerResult{}, domain.Invalid("questionId and optionId are required")
	}
	if err := s.window.EnsureOpen(ctx); err != nil {
		return AnswerResult{}, err
	}

	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return AnswerResult{}, err
	}
	correct, points, err := scoreSubmission(question, optionID)
	if err != nil {
		return AnswerResult{}, err
	}

	now := s.now().UTC()
	session, err := s.record(ctx, userID, domain.UserResponse{
		QuestionID:       question.ID,
		SelectedOptionID: optionID,
		IsCorrect:        correct,
		CreatedAt:        now,
	}, points)
	if err != nil {
		return AnswerResult{}, err
	}

	if correct {
		// the response is committed; a failed push only delays live viewers
		_ = s.board.Refresh(ctx)
	}
	return AnswerResult{Message: "Answer recorded", IsCorrect: correct, SessionID: session.ID}, nil
}

// record stores the response in the user's current session. A finish that
// lands between resolving and recording clears the current pointer, so one
// retry picks up a fresh session.
func (s *QuizService) record(ctx context.Context, userID int64, response domain.UserResponse, points int) (domain.QuizSession, error) {
	for attempt := 0; ; attempt++ {
		session, err := s.sessions.CurrentOrCreateSession(ctx, userID, response.CreatedAt)
		if err != nil {
			return domain.QuizSession{}, err
		}
		response.SessionID = session.ID
		_, err = s.sessions.RecordResponse(ctx, response, points)
		if errors.Is(err, domain.ErrSessionClosed) && attempt == 0 {
			continue
		}
		if err != nil {
			return domain.QuizSession{}, err
		}
		return session, nil
	}
}

// answerStatuses folds responses into per-question status. A question
// answered correctly in any session is CORRECT.
func answerStatuses(responses []domain.UserResponse) map[int64]domain.AnswerStatus {
	out := make(map[int64]domain.AnswerStatus, len(responses))
	for _, r := range responses {
		if r.IsCorrect {
			out[r.QuestionID] = domain.StatusCorrect
			continue
		}
		if _, seen := out[r.QuestionID]; !seen {
			out[r.QuestionID] = domain.StatusIncorrect
		}
	}
	return out
}

// scoreSubmission validates the option against the question and returns (correct, points).
func scoreSubmission(question domain.Question, optionID int64) (bool, int, error) {
	selected, ok := question.Option(optionID)
	if !ok {
		return false, 0, domain.ErrOptionNotFound
	}
	if selected.Correct {
		return true, question.Points, nil
	}
	return false, 0, nil
}
