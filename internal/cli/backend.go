package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"ctf-quiz-service/internal/app"
	"ctf-quiz-service/internal/auth"
	"ctf-quiz-service/internal/config"
	"ctf-quiz-service/internal/infra/memory"
	"ctf-quiz-service/internal/infra/postgres"
	rediscache "ctf-quiz-service/internal/infra/redis"
	"ctf-quiz-service/internal/logger"
)

var errNoPostgres = errors.New("postgres url not configured")

// store is satisfied by both the memory and the Postgres backends.
type store interface {
	app.UserRepository
	app.CategoryRepository
	app.QuestionRepository
	app.SessionRepository
	app.WindowRepository
	Ping(ctx context.Context) error
}

type backend struct {
	store   store
	loader  app.LeaderboardLoader
	redis   *redis.Client
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks Postgres when configured and the in-memory store otherwise.
// requirePostgres is set by offline commands whose effects must persist.
func openBackend(ctx context.Context, cfg config.Config, log *logger.Logger, requirePostgres bool) (*backend, error) {
	b := &backend{}
	if cfg.Postgres.URL == "" {
		if requirePostgres {
			return nil, errNoPostgres
		}
		log.Warn("postgres not configured, using in-memory store")
		mem := memory.NewStore()
		b.store = mem
		b.loader = mem
	} else {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pg := postgres.NewStore(postgres.Open(cfg.Postgres.URL))
		b.closers = append(b.closers, func() { _ = pg.Close() })
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.store = pg
		b.loader = postgres.NewLeaderboardLoader(pool)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, caching leaderboard in memory", "addr", cfg.Redis.Addr, "error", err)
			_ = client.Close()
		} else {
			b.redis = client
			b.closers = append(b.closers, func() { _ = client.Close() })
		}
	}
	return b, nil
}

type services struct {
	tokens   *auth.TokenManager
	board    *app.LeaderboardService
	window   *app.WindowService
	users    *app.UserService
	content  *app.ContentService
	quiz     *app.QuizService
	sessions *app.SessionService
}

func buildServices(cfg config.Config, b *backend) (*services, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL))
	if err != nil {
		return nil, err
	}

	ttl := config.TTLDuration(cfg.Leaderboard.TTL, 10*time.Second)
	var cache app.LeaderboardRepository
	if b.redis != nil {
		cache = rediscache.NewLeaderboardCache(b.redis, b.loader, cfg.Leaderboard.Limit, ttl)
	} else {
		cache = memory.NewLeaderboardCache(b.loader, cfg.Leaderboard.Limit, ttl)
	}
	board := app.NewLeaderboardService(cache)
	window := app.NewWindowService(b.store, cfg.Quiz.DefaultDurationMinutes)

	return &services{
		tokens:   tokens,
		board:    board,
		window:   window,
		users:    app.NewUserService(b.store, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, board),
		content:  app.NewContentService(b.store, b.store, board),
		quiz:     app.NewQuizService(b.store, b.store, window, board),
		sessions: app.NewSessionService(b.store, board),
	}, nil
}
