package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DailyWatchRepo keeps the per-profile, per-calendar-day minute totals.
// A day with no row counts as zero, so rollover needs no reset job.
type DailyWatchRepo struct {
	pool *pgxpool.Pool
}

func NewDailyWatchRepo(pool *pgxpool.Pool) *DailyWatchRepo {
	return &DailyWatchRepo{pool: pool}
}

func dateKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func (r *DailyWatchRepo) Get(ctx context.Context, profileID uuid.UUID, day time.Time) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT total_minutes FROM daily_watch_time WHERE profile_id = $1 AND watch_date = $2::date`,
		profileID, dateKey(day),
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return total, err
}

// Increment adds minutes with a single upsert and returns the new total.
func (r *DailyWatchRepo) Increment(ctx context.Context, profileID uuid.UUID, day time.Time, minutes int) (int, error) {
	if minutes < 0 {
		minutes = 0
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO daily_watch_time (profile_id, watch_date, total_minutes, updated_at)
		VALUES ($1, $2::date, $3, NOW())
		ON CONFLICT (profile_id, watch_date)
		DO UPDATE SET total_minutes = daily_watch_time.total_minutes + EXCLUDED.total_minutes,
			updated_at = NOW()
		RETURNING total_minutes`,
		profileID, dateKey(day), minutes,
	).Scan(&total)
	return total, err
}
