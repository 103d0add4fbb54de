package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ctf-quiz-service/internal/domain"
)

// Store implements the app repositories on Postgres through bun.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// Open connects to dsn with pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the handle for migrations.
func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Users

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := &userModel{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domain.User{}, mapErr("create user", err, nil, domain.ErrDuplicateUser)
	}
	return m.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, s.db, id, false)
}

func getUser(ctx context.Context, db bun.IDB, id int64, forUpdate bool) (domain.User, error) {
	m := new(userModel)
	q := db.NewSelect().Model(m).Where("u.id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.User{}, mapErr("get user", err, domain.ErrUserNotFound, nil)
	}
	return m.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	m := new(userModel)
	err := s.db.NewSelect().Model(m).Where("lower(u.email) = lower(?)", email).Scan(ctx)
	if err != nil {
		return domain.User{}, mapErr("get user by email", err, domain.ErrUserNotFound, nil)
	}
	return m.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []userModel
	if err := s.db.NewSelect().Model(&models).Order("u.id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list users", err, nil, nil)
	}
	out := make([]domain.User, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := &userModel{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
	}
	columns := []string{"username", "email", "role"}
	if user.PasswordHash != "" {
		columns = append(columns, "password_hash")
	}
	res, err := s.db.NewUpdate().Model(m).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return domain.User{}, mapErr("update user", err, nil, domain.ErrDuplicateUser)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, user.ID)
}

// DeleteUser relies on ON DELETE CASCADE for sessions and responses.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*userModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return mapErr("delete user", err, nil, nil)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Categories

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var models []categoryModel
	if err := s.db.NewSelect().Model(&models).Order("c.name ASC").Scan(ctx); err != nil {
		return nil, mapErr("list categories", err, nil, nil)
	}
	out := make([]domain.Category, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	m := &categoryModel{Name: category.Name, Description: category.Description}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return domain.Category{}, mapErr("create category", err, nil, domain.ErrDuplicateCategory)
	}
	return m.toDomain(), nil
}

// FindOrCreateCategory is race-free: the insert is a no-op when another writer got there first.
func (s *Store) FindOrCreateCategory(ctx context.Context, name string) (domain.Category, error) {
	_, err := s.db.NewInsert().
		Model(&categoryModel{Name: name}).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Category{}, mapErr("insert category", err, nil, nil)
	}
	m := new(categoryModel)
	if err := s.db.NewSelect().Model(m).Where("c.name = ?", name).Scan(ctx); err != nil {
		return domain.Category{}, mapErr("find category", err, domain.ErrCategoryNotFound, nil)
	}
	return m.toDomain(), nil
}
