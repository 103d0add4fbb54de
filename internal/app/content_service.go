package app

import (
	"context"
	"errors"
	"io"
	"strings"

	"ctf-quiz-service/internal/domain"
)

// QuestionInput creates a question. CorrectOptionIndex points into Options.
type QuestionInput struct {
	CategoryID         int64    `json:"categoryId"`
	Content            string   `json:"content"`
	Difficulty         string   `json:"difficulty"`
	Points             int      `json:"points"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
}

// OptionInput is an option in an update; ID 0 means a new option.
type OptionInput struct {
	ID      int64  `json:"id,omitempty"`
	Content string `json:"content"`
}

// QuestionUpdate replaces a question's fields and diffs its options by id.
type QuestionUpdate struct {
	CategoryID         int64         `json:"categoryId"`
	Content            string        `json:"content"`
	Difficulty         string        `json:"difficulty"`
	Points             int           `json:"points"`
	Options            []OptionInput `json:"options"`
	CorrectOptionIndex int           `json:"correctOptionIndex"`
}

// ContentService holds the admin authoring use cases.
type ContentService struct {
	categories CategoryRepository
	questions  QuestionRepository
	board      *LeaderboardService
}

func NewContentService(categories CategoryRepository, questions QuestionRepository, board *LeaderboardService) *ContentService {
	return &ContentService{categories: categories, questions: questions, board: board}
}

func (s *ContentService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

func (s *ContentService) CreateCategory(ctx context.Context, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.Invalid("category name is required")
	}
	return s.categories.CreateCategory(ctx, domain.Category{Name: name, Description: strings.TrimSpace(description)})
}

// CreateQuestion validates and stores a question with its options.
func (s *ContentService) CreateQuestion(ctx context.Context, in QuestionInput) (domain.Question, error) {
	q, err := draftQuestion(in.CategoryID, in.Content, in.Difficulty, in.Points)
	if err != nil {
		return domain.Question{}, err
	}
	if err := checkCorrectIndex(in.CorrectOptionIndex, len(in.Options)); err != nil {
		return domain.Question{}, err
	}
	for i, text := range in.Options {
		q.Options = append(q.Options, domain.Option{Content: strings.TrimSpace(text), Correct: i == in.CorrectOptionIndex})
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return s.questions.CreateQuestion(ctx, q)
}

// UpdateQuestion rewrites a question; the store applies the option diff in one transaction.
func (s *ContentService) UpdateQuestion(ctx context.Context, id int64, in QuestionUpdate) (domain.Question, error) {
	if id <= 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q, err := draftQuestion(in.CategoryID, in.Content, in.Difficulty, in.Points)
	if err != nil {
		return domain.Question{}, err
	}
	if err := checkCorrectIndex(in.CorrectOptionIndex, len(in.Options)); err != nil {
		return domain.Question{}, err
	}
	q.ID = id
	for i, o := range in.Options {
		q.Options = append(q.Options, domain.Option{
			ID:         o.ID,
			QuestionID: id,
			Content:    strings.TrimSpace(o.Content),
			Correct:    i == in.CorrectOptionIndex,
		})
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return s.questions.UpdateQuestion(ctx, q)
}

// DeleteQuestion removes a question with its options and responses.
func (s *ContentService) DeleteQuestion(ctx context.Context, id int64) error {
	if err := s.questions.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	_ = s.board.Refresh(ctx)
	return nil
}

// DeleteAllQuestions wipes all quiz content and play history.
func (s *ContentService) DeleteAllQuestions(ctx context.Context) error {
	if err := s.questions.DeleteAllQuestions(ctx); err != nil {
		return err
	}
	_ = s.board.Refresh(ctx)
	return nil
}

// Import parses the CSV and applies every valid row on its own, so one bad
// row never undoes the rows before it.
func (s *ContentService) Import(ctx context.Context, r io.Reader, variant domain.ImportVariant) (domain.ImportResult, error) {
	rows, err := ParseImport(r, variant)
	if err != nil {
		return domain.ImportResult{}, err
	}

	result := domain.ImportResult{Errors: []string{}}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !row.OK() {
			result.Errors = append(result.Errors, row.ImportError(row.Err))
			continue
		}
		if err := s.applyRow(ctx, row); err != nil {
			result.Errors = append(result.Errors, row.ImportError(importReason(err)))
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

func (s *ContentService) applyRow(ctx context.Context, row ImportRow) error {
	category, err := s.categories.FindOrCreateCategory(ctx, row.Category)
	if err != nil {
		return err
	}
	q := row.Draft
	q.CategoryID = &category.ID
	q.CategoryName = category.Name
	_, err = s.questions.CreateQuestion(ctx, q)
	return err
}

// importReason strips store internals from per-row messages.
func importReason(err error) error {
	if errors.Is(err, domain.ErrStore) {
		return domain.ErrStore
	}
	return err
}

func draftQuestion(categoryID int64, content, difficulty string, points int) (domain.Question, error) {
	if categoryID <= 0 {
		return domain.Question{}, domain.Invalid("categoryId is required")
	}
	d, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Question{
		CategoryID: &categoryID,
		Content:    strings.TrimSpace(content),
		Difficulty: d,
		Points:     points,
	}, nil
}

func checkCorrectIndex(idx, n int) error {
	if n < 2 {
		return domain.Invalid("at least two options are required, got %d", n)
	}
	if idx < 0 || idx >= n {
		return domain.Invalid("correctOptionIndex %d is out of range for %d options", idx, n)
	}
	return nil
}
