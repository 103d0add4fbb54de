package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/domain"
)

func TestImportPartialSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.category(t, "SQL")

	csv := "Category,Difficulty,Content,Points,Options,CorrectOption\n" +
		"SQL,EASY,First,10,a|b|c,b\n" +
		"Python,MEDIUM,Second,20,x|y,x\n" +
		"SQL,HARD,Third,30,1|2|3|4,4\n" +
		"SQL,EASY,Missing options,10,,a\n"

	res, err := f.content.Import(ctx, strings.NewReader(csv), domain.VariantText)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.SuccessCount != 3 {
		t.Fatalf("expected 3 imported, got %d (%v)", res.SuccessCount, res.Errors)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "Missing options") || !strings.Contains(res.Errors[0], "row 5") {
		t.Fatalf("expected one error naming the failed row, got %v", res.Errors)
	}
	if res.Message() != "Imported 3 questions" {
		t.Fatalf("unexpected message %q", res.Message())
	}

	questions, _ := f.store.ListQuestions(ctx)
	if len(questions) != 3 {
		t.Fatalf("expected 3 committed questions, got %d", len(questions))
	}
	categories, _ := f.content.ListCategories(ctx)
	if len(categories) != 2 {
		t.Fatalf("expected SQL reused and Python created, got %+v", categories)
	}
}

func TestImportRejectsBadHeader(t *testing.T) {
	f := newFixture(t)
	_, err := f.content.Import(context.Background(), strings.NewReader("Category,Content\nSQL,x\n"), domain.VariantText)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.category(t, "SQL")

	cases := map[string]app.QuestionInput{
		"no category":    {Content: "q", Difficulty: "EASY", Points: 1, Options: []string{"a", "b"}},
		"bad difficulty": {CategoryID: cat.ID, Content: "q", Difficulty: "EXTREME", Points: 1, Options: []string{"a", "b"}},
		"zero points":    {CategoryID: cat.ID, Content: "q", Difficulty: "EASY", Points: 0, Options: []string{"a", "b"}},
		"one option":     {CategoryID: cat.ID, Content: "q", Difficulty: "EASY", Points: 1, Options: []string{"a"}},
		"index range":    {CategoryID: cat.ID, Content: "q", Difficulty: "EASY", Points: 1, Options: []string{"a", "b"}, CorrectOptionIndex: 2},
		"empty content":  {CategoryID: cat.ID, Content: " ", Difficulty: "EASY", Points: 1, Options: []string{"a", "b"}},
	}
	for name, in := range cases {
		if _, err := f.content.CreateQuestion(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	_, err := f.content.CreateQuestion(ctx, app.QuestionInput{CategoryID: 42, Content: "q", Difficulty: "EASY", Points: 1, Options: []string{"a", "b"}})
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected category not found, got %v", err)
	}
}

func TestUpdateQuestionDiffsOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.category(t, "SQL")
	q := f.question(t, cat.ID, "q1", 10)

	updated, err := f.content.UpdateQuestion(ctx, q.ID, app.QuestionUpdate{
		CategoryID: cat.ID,
		Content:    "q1 revised",
		Difficulty: "MEDIUM",
		Points:     15,
		Options: []app.OptionInput{
			{ID: q.Options[0].ID, Content: "still wrong"},
			{Content: "new right"},
		},
		CorrectOptionIndex: 1,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "q1 revised" || updated.Points != 15 || updated.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected fields %+v", updated)
	}
	if len(updated.Options) != 2 || updated.Options[0].ID != q.Options[0].ID {
		t.Fatalf("expected first option kept, got %+v", updated.Options)
	}
	if _, ok := updated.Option(q.Options[1].ID); ok {
		t.Fatalf("expected dropped option removed")
	}
	if !updated.Options[1].Correct || updated.Options[0].Correct {
		t.Fatalf("expected new option marked correct, got %+v", updated.Options)
	}

	_, err = f.content.UpdateQuestion(ctx, 999, app.QuestionUpdate{CategoryID: cat.ID, Content: "x", Difficulty: "EASY", Points: 1, Options: []app.OptionInput{{Content: "a"}, {Content: "b"}}})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAllClearsPlayHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.category(t, "SQL")
	q := f.question(t, cat.ID, "q1", 10)
	alice := f.register(t, "alice")
	f.openQuiz(t, 30)
	_, _ = f.quiz.SubmitAnswer(ctx, alice.ID, q.ID, correctOption(q))

	if err := f.content.DeleteAllQuestions(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	questions, _ := f.quiz.ListQuestions(ctx, nil)
	lb, _ := f.sessions.Leaderboard(ctx)
	if len(questions) != 0 || len(lb) != 0 {
		t.Fatalf("expected empty content and board, got %d questions, %d entries", len(questions), len(lb))
	}
	if err := f.content.DeleteQuestion(ctx, q.ID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateCategoryDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.category(t, "SQL")
	if _, err := f.content.CreateCategory(ctx, "SQL", ""); !errors.Is(err, domain.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := f.content.CreateCategory(ctx, "  ", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}
