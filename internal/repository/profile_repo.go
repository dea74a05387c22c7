package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tapplay-backend/internal/models"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const profileColumns = `id, user_id, name, age, avatar, daily_limit_minutes, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Age, &p.Avatar, &p.DailyLimitMinutes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProfileRepo) Create(ctx context.Context, p *models.Profile) error {
	p.ID = uuid.New()
	query := `INSERT INTO profiles (id, user_id, name, age, avatar, daily_limit_minutes)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Age, p.Avatar, p.DailyLimitMinutes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetByID always reads the current row; the watch engine relies on that to pick up limit changes.
func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

func (r *ProfileRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *ProfileRepo) Update(ctx context.Context, p *models.Profile) error {
	query := `UPDATE profiles
		SET name = $1, age = $2, avatar = $3, daily_limit_minutes = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		p.Name, p.Age, p.Avatar, p.DailyLimitMinutes, p.ID, p.UserID,
	).Scan(&p.UpdatedAt)
}

func (r *ProfileRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM profiles WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
