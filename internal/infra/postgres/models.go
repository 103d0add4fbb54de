package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"ctf-quiz-service/internal/domain"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               int64     `bun:"id,pk,autoincrement"`
	Username         string    `bun:"username,notnull"`
	Email            string    `bun:"email,notnull"`
	PasswordHash     string    `bun:"password_hash,notnull"`
	Role             string    `bun:"role,notnull"`
	CurrentSessionID *int64    `bun:"current_session_id"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:               m.ID,
		Username:         m.Username,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		Role:             domain.Role(m.Role),
		CurrentSessionID: m.CurrentSessionID,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

type categoryModel struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description,notnull"`
}

func (m categoryModel) toDomain() domain.Category {
	return domain.Category{ID: m.ID, Name: m.Name, Description: m.Description}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID         int64          `bun:"id,pk,autoincrement"`
	CategoryID *int64         `bun:"category_id"`
	Content    string         `bun:"content,notnull"`
	Difficulty string         `bun:"difficulty,notnull"`
	Points     int            `bun:"points,notnull"`
	Category   *categoryModel `bun:"rel:belongs-to,join:category_id=id"`
	Options    []optionModel  `bun:"rel:has-many,join:id=question_id"`
}

func (m questionModel) toDomain() domain.Question {
	q := domain.Question{
		ID:         m.ID,
		CategoryID: m.CategoryID,
		Content:    m.Content,
		Difficulty: domain.Difficulty(m.Difficulty),
		Points:     m.Points,
		Options:    make([]domain.Option, 0, len(m.Options)),
	}
	if m.Category != nil {
		q.CategoryName = m.Category.Name
	}
	for _, o := range m.Options {
		q.Options = append(q.Options, o.toDomain())
	}
	return q
}

type optionModel struct {
	bun.BaseModel `bun:"table:options,alias:o"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Content    string `bun:"content,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
}

func (m optionModel) toDomain() domain.Option {
	return domain.Option{ID: m.ID, QuestionID: m.QuestionID, Content: m.Content, Correct: m.IsCorrect}
}

type sessionModel struct {
	bun.BaseModel `bun:"table:quiz_sessions,alias:s"`

	ID          int64      `bun:"id,pk,autoincrement"`
	UserID      int64      `bun:"user_id,notnull"`
	StartedAt   time.Time  `bun:"started_at,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`
	TotalScore  int        `bun:"total_score,notnull"`
}

func (m sessionModel) toDomain() domain.QuizSession {
	s := domain.QuizSession{
		ID:         m.ID,
		UserID:     m.UserID,
		StartedAt:  m.StartedAt.UTC(),
		TotalScore: m.TotalScore,
	}
	if m.CompletedAt != nil {
		at := m.CompletedAt.UTC()
		s.CompletedAt = &at
	}
	return s
}

type responseModel struct {
	bun.BaseModel `bun:"table:user_responses,alias:r"`

	ID               int64     `bun:"id,pk,autoincrement"`
	SessionID        int64     `bun:"session_id,notnull"`
	QuestionID       int64     `bun:"question_id,notnull"`
	SelectedOptionID *int64    `bun:"selected_option_id"`
	IsCorrect        bool      `bun:"is_correct,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

func (m responseModel) toDomain() domain.UserResponse {
	r := domain.UserResponse{
		ID:         m.ID,
		SessionID:  m.SessionID,
		QuestionID: m.QuestionID,
		IsCorrect:  m.IsCorrect,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.SelectedOptionID != nil {
		r.SelectedOptionID = *m.SelectedOptionID
	}
	return r
}

type windowModel struct {
	bun.BaseModel `bun:"table:quiz_window,alias:w"`

	ID              int16     `bun:"id,pk"`
	Revision        int64     `bun:"revision,notnull"`
	IsActive        bool      `bun:"is_active,notnull"`
	StartTime       time.Time `bun:"start_time,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (m windowModel) toDomain() domain.QuizWindow {
	return domain.QuizWindow{
		Revision:        m.Revision,
		IsActive:        m.IsActive,
		StartTime:       m.StartTime.UTC(),
		DurationMinutes: m.DurationMinutes,
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}
