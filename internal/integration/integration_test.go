package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/crypto/bcrypt"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/auth"
	"ctf-quiz-service/internal/domain"
	"ctf-quiz-service/internal/infra/postgres"
	pgmigrations "ctf-quiz-service/internal/infra/postgres/migrations"
	infraredis "ctf-quiz-service/internal/infra/redis"
)

type env struct {
	store    *postgres.Store
	window   *app.WindowService
	board    *app.LeaderboardService
	quiz     *app.QuizService
	sessions *app.SessionService
	content  *app.ContentService
	users    *app.UserService
}

func TestAnswerFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	alice := register(t, ctx, e, "alice")
	bob := register(t, ctx, e, "bob")
	q := seedQuestion(t, ctx, e, 5)

	if _, err := e.window.Start(ctx, 30); err != nil {
		t.Fatalf("start window: %v", err)
	}

	res, err := e.quiz.SubmitAnswer(ctx, bob.ID, q.ID, optionID(q, true))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.IsCorrect || res.SessionID == 0 {
		t.Fatalf("expected correct answer in a session, got %+v", res)
	}
	if _, err := e.quiz.SubmitAnswer(ctx, bob.ID, q.ID, optionID(q, false)); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	if _, err := e.quiz.SubmitAnswer(ctx, alice.ID, q.ID, optionID(q, false)); err != nil {
		t.Fatalf("alice submit: %v", err)
	}

	finished, err := e.sessions.FinishSession(ctx, bob.ID, res.SessionID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.TotalScore != 5 || finished.CompletedAt == nil {
		t.Fatalf("expected completed session with 5 points, got %+v", finished)
	}
	late := domain.UserResponse{SessionID: res.SessionID, QuestionID: q.ID, SelectedOptionID: optionID(q, true), IsCorrect: true}
	if _, err := e.store.RecordResponse(ctx, late, q.Points); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if _, err := e.sessions.FinishSession(ctx, alice.ID, res.SessionID); !errors.Is(err, domain.ErrSessionNotOwned) {
		t.Fatalf("expected ErrSessionNotOwned, got %v", err)
	}

	top, err := e.board.Top(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 || top[0].Username != "bob" || top[0].GrandTotal != 5 || top[1].GrandTotal != 0 {
		t.Fatalf("unexpected leaderboard %+v", top)
	}

	views, err := e.quiz.ListQuestions(ctx, &bob.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].Status != domain.StatusCorrect {
		t.Fatalf("expected CORRECT status, got %+v", views)
	}
}

func TestConcurrentFirstAnswersShareSession(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	carol := register(t, ctx, e, "carol")
	q1 := seedQuestion(t, ctx, e, 1)
	q2 := seedQuestion(t, ctx, e, 2)
	if _, err := e.window.Start(ctx, 10); err != nil {
		t.Fatalf("start window: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]app.AnswerResult, 2)
	errs := make([]error, 2)
	for i, q := range []domain.Question{q1, q2} {
		wg.Add(1)
		go func(i int, q domain.Question) {
			defer wg.Done()
			results[i], errs[i] = e.quiz.SubmitAnswer(ctx, carol.ID, q.ID, optionID(q, true))
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if results[0].SessionID != results[1].SessionID {
		t.Fatalf("expected one session, got %d and %d", results[0].SessionID, results[1].SessionID)
	}
	session, err := e.store.GetSession(ctx, results[0].SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.TotalScore != 3 {
		t.Fatalf("expected running score 3, got %d", session.TotalScore)
	}
}

func TestWindowRevisionAndClosedQuiz(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	status, err := e.window.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Open || status.Revision != 0 {
		t.Fatalf("expected inactive default window, got %+v", status)
	}

	first, err := e.window.Start(ctx, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := e.window.Start(ctx, 2)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.Revision <= first.Revision || second.DurationMinutes != 2 {
		t.Fatalf("expected newer revision with duration 2, got %+v after %+v", second, first)
	}

	stopped, err := e.window.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Open || stopped.Revision <= second.Revision {
		t.Fatalf("expected closed window with bumped revision, got %+v", stopped)
	}

	dave := register(t, ctx, e, "dave")
	q := seedQuestion(t, ctx, e, 1)
	if _, err := e.quiz.SubmitAnswer(ctx, dave.ID, q.ID, optionID(q, true)); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected ErrQuizClosed, got %v", err)
	}
}

func TestQuestionUpdateDiffsOptions(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	q := seedQuestion(t, ctx, e, 3)
	keep := q.Options[0]
	updated, err := e.content.UpdateQuestion(ctx, q.ID, app.QuestionUpdate{
		CategoryID: *q.CategoryID,
		Content:    "Which port does DNS use?",
		Difficulty: "MEDIUM",
		Points:     4,
		Options: []app.OptionInput{
			{ID: keep.ID, Content: "53"},
			{Content: "80"},
		},
		CorrectOptionIndex: 0,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Options) != 2 || updated.Points != 4 {
		t.Fatalf("unexpected question %+v", updated)
	}
	found := false
	for _, o := range updated.Options {
		if o.ID == keep.ID {
			found = true
			if !o.Correct || o.Content != "53" {
				t.Fatalf("kept option not updated: %+v", o)
			}
		}
	}
	if !found {
		t.Fatalf("expected option %d to survive the update", keep.ID)
	}

	if _, err := e.content.UpdateQuestion(ctx, q.ID, app.QuestionUpdate{
		CategoryID: *q.CategoryID,
		Content:    "bad",
		Difficulty: "EASY",
		Points:     1,
		Options:    []app.OptionInput{{Content: "only"}},
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, err := e.store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if len(stored.Options) != 2 {
		t.Fatalf("rejected update must not change options, got %d", len(stored.Options))
	}
}

func TestImportAndClearData(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	csv := strings.Join([]string{
		"Category,Difficulty,Content,Points,Options,CorrectOption",
		"Networking,EASY,Port for SSH?,1,21|22|23,22",
		"Networking,HARD,Port for LDAPS?,3,389|636,636",
		"Crypto,MEDIUM,Block size of AES in bits?,2,64|128|256,512",
	}, "\n")
	res, err := e.content.Import(ctx, strings.NewReader(csv), domain.VariantText)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.SuccessCount != 2 || len(res.Errors) != 1 {
		t.Fatalf("expected 2 imported and 1 error, got %+v", res)
	}
	cats, err := e.content.ListCategories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Networking" {
		t.Fatalf("expected only Networking category, got %+v", cats)
	}

	if err := e.content.DeleteAllQuestions(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	qs, err := e.store.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("expected no questions, got %d", len(qs))
	}
}

func setup(t *testing.T, ctx context.Context) *env {
	t.Helper()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	redisAddr := startRedis(t, ctx)

	db := postgres.Open(pgURL)
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := postgres.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = client.Close() })

	cache := infraredis.NewLeaderboardCache(client, postgres.NewLeaderboardLoader(pool), 10, time.Minute)
	board := app.NewLeaderboardService(cache)
	window := app.NewWindowService(store, domain.DefaultQuizDuration)
	tokens, err := auth.NewTokenManager("integration-secret", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	return &env{
		store:    store,
		window:   window,
		board:    board,
		quiz:     app.NewQuizService(store, store, window, board),
		sessions: app.NewSessionService(store, board),
		content:  app.NewContentService(store, store, board),
		users:    app.NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, board),
	}
}

func register(t *testing.T, ctx context.Context, e *env, name string) domain.User {
	t.Helper()
	u, err := e.users.Register(ctx, app.UserInput{Username: name, Email: name + "@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

var questionSeq int

func seedQuestion(t *testing.T, ctx context.Context, e *env, points int) domain.Question {
	t.Helper()
	cat, err := e.store.FindOrCreateCategory(ctx, "General")
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	questionSeq++
	q, err := e.content.CreateQuestion(ctx, app.QuestionInput{
		CategoryID:         cat.ID,
		Content:            fmt.Sprintf("Question %d", questionSeq),
		Difficulty:         "EASY",
		Points:             points,
		Options:            []string{"right", "wrong", "also wrong"},
		CorrectOptionIndex: 0,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func optionID(q domain.Question, correct bool) int64 {
	for _, o := range q.Options {
		if o.Correct == correct {
			return o.ID
		}
	}
	return 0
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
