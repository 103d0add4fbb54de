package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"ctf-quiz-service/internal/domain"
)

func selectQuestions(db bun.IDB, dest interface{}) *bun.SelectQuery {
	return db.NewSelect().
		Model(dest).
		Relation("Category").
		Relation("Options", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("o.id ASC")
		})
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var models []questionModel
	if err := selectQuestions(s.db, &models).Order("q.id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list questions", err, nil, nil)
	}
	out := make([]domain.Question, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	return getQuestion(ctx, s.db, id)
}

func getQuestion(ctx context.Context, db bun.IDB, id int64) (domain.Question, error) {
	m := new(questionModel)
	if err := selectQuestions(db, m).Where("q.id = ?", id).Scan(ctx); err != nil {
		return domain.Question{}, mapErr("get question", err, domain.ErrQuestionNotFound, nil)
	}
	return m.toDomain(), nil
}

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	var created domain.Question
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkCategory(ctx, tx, question.CategoryID); err != nil {
			return err
		}
		m := &questionModel{
			CategoryID: question.CategoryID,
			Content:    question.Content,
			Difficulty: string(question.Difficulty),
			Points:     question.Points,
		}
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return questionWriteErr("insert question", err)
		}
		options := make([]optionModel, 0, len(question.Options))
		for _, o := range question.Options {
			options = append(options, optionModel{QuestionID: m.ID, Content: o.Content, IsCorrect: o.Correct})
		}
		if _, err := tx.NewInsert().Model(&options).Exec(ctx); err != nil {
			return mapErr("insert options", err, nil, nil)
		}
		var err error
		created, err = getQuestion(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	return created, nil
}

// UpdateQuestion rewrites the question and diffs its options inside one transaction.
func (s *Store) UpdateQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	var updated domain.Question
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var lockedID int64
		err := tx.NewSelect().Model((*questionModel)(nil)).Column("id").Where("q.id = ?", question.ID).For("UPDATE").Scan(ctx, &lockedID)
		if err != nil {
			return mapErr("lock question", err, domain.ErrQuestionNotFound, nil)
		}
		if err := checkCategory(ctx, tx, question.CategoryID); err != nil {
			return err
		}

		m := &questionModel{
			ID:         question.ID,
			CategoryID: question.CategoryID,
			Content:    question.Content,
			Difficulty: string(question.Difficulty),
			Points:     question.Points,
		}
		if _, err := tx.NewUpdate().Model(m).Column("category_id", "content", "difficulty", "points").WherePK().Exec(ctx); err != nil {
			return questionWriteErr("update question", err)
		}

		var existingIDs []int64
		if err := tx.NewSelect().Model((*optionModel)(nil)).Column("id").Where("question_id = ?", question.ID).Scan(ctx, &existingIDs); err != nil {
			return mapErr("load options", err, nil, nil)
		}
		existing := make(map[int64]bool, len(existingIDs))
		for _, id := range existingIDs {
			existing[id] = true
		}

		kept := make([]int64, 0, len(question.Options))
		seen := make(map[int64]bool, len(question.Options))
		var inserts []optionModel
		for _, o := range question.Options {
			if o.ID != 0 && existing[o.ID] && !seen[o.ID] {
				seen[o.ID] = true
				kept = append(kept, o.ID)
				_, err := tx.NewUpdate().
					Model(&optionModel{ID: o.ID, QuestionID: question.ID, Content: o.Content, IsCorrect: o.Correct}).
					Column("content", "is_correct").
					WherePK().
					Exec(ctx)
				if err != nil {
					return mapErr("update option", err, nil, nil)
				}
				continue
			}
			inserts = append(inserts, optionModel{QuestionID: question.ID, Content: o.Content, IsCorrect: o.Correct})
		}

		del := tx.NewDelete().Model((*optionModel)(nil)).Where("question_id = ?", question.ID)
		if len(kept) > 0 {
			del = del.Where("id NOT IN (?)", bun.In(kept))
		}
		if _, err := del.Exec(ctx); err != nil {
			return mapErr("delete options", err, nil, nil)
		}
		if len(inserts) > 0 {
			if _, err := tx.NewInsert().Model(&inserts).Exec(ctx); err != nil {
				return mapErr("insert options", err, nil, nil)
			}
		}

		updated, err = getQuestion(ctx, tx, question.ID)
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	return updated, nil
}

// DeleteQuestion relies on ON DELETE CASCADE for options and responses.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*questionModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return mapErr("delete question", err, nil, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// DeleteAllQuestions clears play history and content, keeping users and categories.
func (s *Store) DeleteAllQuestions(ctx context.Context) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range []string{
			`UPDATE users SET current_session_id = NULL WHERE current_session_id IS NOT NULL`,
			`DELETE FROM user_responses`,
			`DELETE FROM quiz_sessions`,
			`DELETE FROM options`,
			`DELETE FROM questions`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr("delete all questions", err, nil, nil)
}

func checkCategory(ctx context.Context, db bun.IDB, id *int64) error {
	if id == nil {
		return nil
	}
	exists, err := db.NewSelect().Model((*categoryModel)(nil)).Where("c.id = ?", *id).Exists(ctx)
	if err != nil {
		return mapErr("check category", err, nil, nil)
	}
	if !exists {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// questionWriteErr covers a category removed between the check and the write.
func questionWriteErr(op string, err error) error {
	if isForeignKeyViolation(err) {
		return domain.ErrCategoryNotFound
	}
	return mapErr(op, err, nil, nil)
}
