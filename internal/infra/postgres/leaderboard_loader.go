package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ctf-quiz-service/internal/domain"
)

const leaderboardQuery = `
SELECT u.id, u.username, COALESCE(SUM(s.total_score), 0)::bigint AS grand_total
FROM users u
JOIN quiz_sessions s ON s.user_id = u.id
WHERE u.role <> 'ADMIN'
GROUP BY u.id, u.username
ORDER BY grand_total DESC, u.id ASC
LIMIT $1`

const defaultLeaderboardLimit = 10

// LeaderboardLoader aggregates cumulative totals straight from Postgres.
type LeaderboardLoader struct {
	pool *pgxpool.Pool
}

func NewLeaderboardLoader(pool *pgxpool.Pool) *LeaderboardLoader {
	return &LeaderboardLoader{pool: pool}
}

func (l *LeaderboardLoader) LoadLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := l.pool.Query(ctx, leaderboardQuery, limit)
	if err != nil {
		return nil, domain.StoreFailure("load leaderboard", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var (
			e     domain.LeaderboardEntry
			total int64
		)
		if err := rows.Scan(&e.UserID, &e.Username, &total); err != nil {
			return nil, domain.StoreFailure("scan leaderboard", err)
		}
		e.GrandTotal = int(total)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("load leaderboard", err)
	}
	return entries, nil
}
