package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ctf-quiz-service/internal/domain"
)

type answerKey struct {
	sessionID  int64
	questionID int64
}

// Store is an in-memory implementation of every app repository. It mirrors
// the relational schema's uniqueness rules and cascades so the services
// behave the same against either backend.
type Store struct {
	mu sync.RWMutex

	users      map[int64]domain.User
	categories map[int64]domain.Category
	questions  map[int64]domain.Question
	sessions   map[int64]domain.QuizSession
	responses  map[int64]domain.UserResponse
	answered   map[answerKey]int64

	window    domain.QuizWindow
	hasWindow bool

	userSeq, categorySeq, questionSeq, optionSeq, sessionSeq, responseSeq int64
	now                                                                   func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:      make(map[int64]domain.User),
		categories: make(map[int64]domain.Category),
		questions:  make(map[int64]domain.Question),
		sessions:   make(map[int64]domain.QuizSession),
		responses:  make(map[int64]domain.UserResponse),
		answered:   make(map[answerKey]int64),
		now:        time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Users

func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userTaken(user, 0) {
		return domain.User{}, domain.ErrDuplicateUser
	}
	s.userSeq++
	user.ID = s.userSeq
	user.CurrentSessionID = nil
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if s.userTaken(user, user.ID) {
		return domain.User{}, domain.ErrDuplicateUser
	}
	stored.Username = user.Username
	stored.Email = user.Email
	stored.Role = user.Role
	if user.PasswordHash != "" {
		stored.PasswordHash = user.PasswordHash
	}
	s.users[user.ID] = stored
	return stored, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	for sid, session := range s.sessions {
		if session.UserID == id {
			s.dropSessionLocked(sid)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) userTaken(user domain.User, exceptID int64) bool {
	for id, u := range s.users {
		if id == exceptID {
			continue
		}
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return true
		}
	}
	return false
}

// Categories

func (s *Store) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categoryByNameLocked(category.Name); ok {
		return domain.Category{}, domain.ErrDuplicateCategory
	}
	return s.insertCategoryLocked(category), nil
}

func (s *Store) FindOrCreateCategory(_ context.Context, name string) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categoryByNameLocked(name); ok {
		return c, nil
	}
	return s.insertCategoryLocked(domain.Category{Name: name}), nil
}

func (s *Store) categoryByNameLocked(name string) (domain.Category, bool) {
	for _, c := range s.categories {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Store) insertCategoryLocked(category domain.Category) domain.Category {
	s.categorySeq++
	category.ID = s.categorySeq
	s.categories[category.ID] = category
	return category
}

// Questions

func (s *Store) ListQuestions(context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, s.viewQuestionLocked(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return s.viewQuestionLocked(q), nil
}

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategoryLocked(question.CategoryID); err != nil {
		return domain.Question{}, err
	}
	s.questionSeq++
	question.ID = s.questionSeq
	options := make([]domain.Option, 0, len(question.Options))
	for _, o := range question.Options {
		s.optionSeq++
		o.ID = s.optionSeq
		o.QuestionID = question.ID
		options = append(options, o)
	}
	question.Options = options
	s.questions[question.ID] = question
	return s.viewQuestionLocked(question), nil
}

func (s *Store) UpdateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.questions[question.ID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err := s.checkCategoryLocked(question.CategoryID); err != nil {
		return domain.Question{}, err
	}

	existing := make(map[int64]bool, len(stored.Options))
	for _, o := range stored.Options {
		existing[o.ID] = true
	}
	kept := make(map[int64]bool, len(question.Options))
	options := make([]domain.Option, 0, len(question.Options))
	for _, o := range question.Options {
		if o.ID == 0 || !existing[o.ID] || kept[o.ID] {
			s.optionSeq++
			o.ID = s.optionSeq
		}
		kept[o.ID] = true
		o.QuestionID = question.ID
		options = append(options, o)
	}
	for id, r := range s.responses {
		if r.QuestionID == question.ID && existing[r.SelectedOptionID] && !kept[r.SelectedOptionID] {
			r.SelectedOptionID = 0
			s.responses[id] = r
		}
	}
	question.Options = options
	s.questions[question.ID] = question
	return s.viewQuestionLocked(question), nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	for rid, r := range s.responses {
		if r.QuestionID == id {
			delete(s.answered, answerKey{r.SessionID, r.QuestionID})
			delete(s.responses, rid)
		}
	}
	delete(s.questions, id)
	return nil
}

func (s *Store) DeleteAllQuestions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = make(map[int64]domain.UserResponse)
	s.answered = make(map[answerKey]int64)
	s.sessions = make(map[int64]domain.QuizSession)
	s.questions = make(map[int64]domain.Question)
	for id, u := range s.users {
		u.CurrentSessionID = nil
		s.users[id] = u
	}
	return nil
}

func (s *Store) checkCategoryLocked(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := s.categories[*id]; !ok {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// viewQuestionLocked returns a copy safe to hand out, with the category name resolved.
func (s *Store) viewQuestionLocked(q domain.Question) domain.Question {
	q.Options = append([]domain.Option(nil), q.Options...)
	q.CategoryName = ""
	if q.CategoryID != nil {
		if c, ok := s.categories[*q.CategoryID]; ok {
			q.CategoryName = c.Name
		}
		id := *q.CategoryID
		q.CategoryID = &id
	}
	return q
}

// Sessions

func (s *Store) CreateSession(_ context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.QuizSession{}, domain.ErrUserNotFound
	}
	return s.createSessionLocked(userID, startedAt), nil
}

func (s *Store) CurrentOrCreateSession(_ context.Context, userID int64, startedAt time.Time) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.QuizSession{}, domain.ErrUserNotFound
	}
	if user.CurrentSessionID != nil {
		if session, ok := s.sessions[*user.CurrentSessionID]; ok && session.Open() {
			return session, nil
		}
	}
	return s.createSessionLocked(userID, startedAt), nil
}

func (s *Store) createSessionLocked(userID int64, startedAt time.Time) domain.QuizSession {
	s.sessionSeq++
	session := domain.QuizSession{ID: s.sessionSeq, UserID: userID, StartedAt: startedAt.UTC()}
	s.sessions[session.ID] = session

	user := s.users[userID]
	id := session.ID
	user.CurrentSessionID = &id
	s.users[userID] = user
	return session
}

func (s *Store) GetSession(_ context.Context, id int64) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) RecordResponse(_ context.Context, response domain.UserResponse, points int) (domain.UserResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[response.SessionID]
	if !ok {
		return domain.UserResponse{}, domain.ErrSessionNotFound
	}
	if !session.Open() {
		return domain.UserResponse{}, domain.ErrSessionClosed
	}
	if _, ok := s.questions[response.QuestionID]; !ok {
		return domain.UserResponse{}, domain.ErrQuestionNotFound
	}
	key := answerKey{response.SessionID, response.QuestionID}
	if _, dup := s.answered[key]; dup {
		return domain.UserResponse{}, domain.ErrAlreadyAnswered
	}

	s.responseSeq++
	response.ID = s.responseSeq
	if response.CreatedAt.IsZero() {
		response.CreatedAt = s.now().UTC()
	}
	s.responses[response.ID] = response
	s.answered[key] = response.ID
	if response.IsCorrect {
		session.TotalScore += points
		s.sessions[session.ID] = session
	}
	return response, nil
}

func (s *Store) ResponsesByUser(_ context.Context, userID int64) ([]domain.UserResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserResponse
	for _, r := range s.responses {
		if session, ok := s.sessions[r.SessionID]; ok && session.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CompleteSession(_ context.Context, sessionID int64, completedAt time.Time) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}

	score := 0
	for _, r := range s.responses {
		if r.SessionID != sessionID || !r.IsCorrect {
			continue
		}
		if q, ok := s.questions[r.QuestionID]; ok {
			score += q.Points
		}
	}
	at := completedAt.UTC()
	session.CompletedAt = &at
	session.TotalScore = score
	s.sessions[sessionID] = session

	if user, ok := s.users[session.UserID]; ok && user.CurrentSessionID != nil && *user.CurrentSessionID == sessionID {
		user.CurrentSessionID = nil
		s.users[user.ID] = user
	}
	return session, nil
}

func (s *Store) dropSessionLocked(id int64) {
	for rid, r := range s.responses {
		if r.SessionID == id {
			delete(s.answered, answerKey{r.SessionID, r.QuestionID})
			delete(s.responses, rid)
		}
	}
	delete(s.sessions, id)
}

// Quiz window

func (s *Store) CurrentWindow(context.Context) (domain.QuizWindow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window, s.hasWindow, nil
}

func (s *Store) StartWindow(_ context.Context, start time.Time, durationMinutes int) (domain.QuizWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = domain.QuizWindow{
		Revision:        s.window.Revision + 1,
		IsActive:        true,
		StartTime:       start.UTC(),
		DurationMinutes: durationMinutes,
		UpdatedAt:       start.UTC(),
	}
	s.hasWindow = true
	return s.window, nil
}

func (s *Store) StopWindow(_ context.Context, at time.Time) (domain.QuizWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasWindow {
		return domain.QuizWindow{}, false, nil
	}
	s.window.Revision++
	s.window.IsActive = false
	s.window.UpdatedAt = at.UTC()
	return s.window, true, nil
}

// Leaderboard

// LoadLeaderboard sums total scores of every non-admin user with at least one session.
func (s *Store) LoadLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[int64]int)
	for _, session := range s.sessions {
		user, ok := s.users[session.UserID]
		if !ok || user.IsAdmin() {
			continue
		}
		totals[user.ID] += session.TotalScore
	}
	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for id, total := range totals {
		entries = append(entries, domain.LeaderboardEntry{UserID: id, Username: s.users[id].Username, GrandTotal: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].GrandTotal != entries[j].GrandTotal {
			return entries[i].GrandTotal > entries[j].GrandTotal
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
