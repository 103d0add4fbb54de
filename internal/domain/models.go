package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the privilege level carried by a user and their bearer credential.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts USER or ADMIN (case-insensitive). Empty input yields USER.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", Invalid("unknown role %q", raw)
}

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty normalizes case and surrounding whitespace.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(raw)))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", Invalid("difficulty must be EASY, MEDIUM or HARD, got %q", raw)
}

// AnswerStatus is the lifetime status of a question for one user.
type AnswerStatus string

const (
	StatusUnanswered AnswerStatus = "UNANSWERED"
	StatusCorrect    AnswerStatus = "CORRECT"
	StatusIncorrect  AnswerStatus = "INCORRECT"
)

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	CurrentSessionID *int64    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Category groups questions. Names are unique and matched case-sensitively.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Option is a possible answer. Correct is never serialized.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Content    string `json:"content"`
	Correct    bool   `json:"-"`
}

// Question is an MCQ question. CategoryID is nil once its category is gone.
type Question struct {
	ID           int64      `json:"id"`
	CategoryID   *int64     `json:"category_id"`
	CategoryName string     `json:"category"`
	Content      string     `json:"content"`
	Difficulty   Difficulty `json:"difficulty"`
	Points       int        `json:"points"`
	Options      []Option   `json:"options"`
}

// CorrectCount returns how many options are flagged correct.
func (q Question) CorrectCount() int {
	n := 0
	for _, o := range q.Options {
		if o.Correct {
			n++
		}
	}
	return n
}

// Option looks up one of the question's options by id.
func (q Question) Option(id int64) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Validate checks authoring rules: content, positive points, at least two
// options and exactly one marked correct.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Content) == "" {
		return Invalid("content is required")
	}
	if _, err := ParseDifficulty(string(q.Difficulty)); err != nil {
		return err
	}
	if q.Points <= 0 {
		return Invalid("points must be a positive integer, got %d", q.Points)
	}
	if len(q.Options) < 2 {
		return Invalid("at least two options are required, got %d", len(q.Options))
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o.Content) == "" {
			return Invalid("option %d is empty", i+1)
		}
	}
	if n := q.CorrectCount(); n != 1 {
		return Invalid("exactly one option must be correct, got %d", n)
	}
	return nil
}

// QuizSession is one play-through. TotalScore is maintained incrementally and
// recomputed from responses on finish.
type QuizSession struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TotalScore  int        `json:"total_score"`
}

// Open reports whether the session has not been finished.
func (s QuizSession) Open() bool { return s.CompletedAt == nil }

// UserResponse records one answer. At most one exists per (session, question).
type UserResponse struct {
	ID               int64     `json:"id"`
	SessionID        int64     `json:"session_id"`
	QuestionID       int64     `json:"question_id"`
	SelectedOptionID int64     `json:"selected_option_id"`
	IsCorrect        bool      `json:"is_correct"`
	CreatedAt        time.Time `json:"created_at"`
}

// LeaderboardEntry is a participant's cumulative total across all sessions.
type LeaderboardEntry struct {
	UserID     int64  `json:"-"`
	Username   string `json:"username"`
	GrandTotal int    `json:"grand_total"`
}

// Leaderboard captures the ordered scoreboard at a point in time.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ImportVariant selects how the CorrectOption CSV column is interpreted.
type ImportVariant string

const (
	// VariantText matches CorrectOption against option text.
	VariantText ImportVariant = "text"
	// VariantLetter maps CorrectOption A, B, C... to option positions.
	VariantLetter ImportVariant = "letter"
)

// ParseImportVariant defaults to VariantText.
func ParseImportVariant(raw string) (ImportVariant, error) {
	switch ImportVariant(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VariantText:
		return VariantText, nil
	case VariantLetter:
		return VariantLetter, nil
	}
	return "", Invalid("unknown import variant %q", raw)
}

// ImportResult summarizes a best-effort CSV import.
type ImportResult struct {
	SuccessCount int      `json:"successCount"`
	Errors       []string `json:"errors"`
}

// Message mirrors the human readable summary returned to admins.
func (r ImportResult) Message() string {
	return fmt.Sprintf("Imported %d questions", r.SuccessCount)
}
