package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tapplay-backend/internal/models"
)

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

const videoColumns = `id, user_id, platform, platform_video_id, source_url, title, thumbnail_url,
	duration_seconds, age_rating, status, created_at`

func scanVideo(row pgx.Row) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID, &v.UserID, &v.Platform, &v.PlatformVideoID, &v.SourceURL, &v.Title, &v.ThumbnailURL,
		&v.DurationSeconds, &v.AgeRating, &v.Status, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VideoRepo) Create(ctx context.Context, v *models.Video) error {
	v.ID = uuid.New()
	v.Status = models.VideoStatusPending

	query := `INSERT INTO videos (id, user_id, platform, platform_video_id, source_url, title, age_rating, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		v.ID, v.UserID, v.Platform, v.PlatformVideoID, v.SourceURL, v.Title, v.AgeRating, v.Status,
	).Scan(&v.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
}

func (r *VideoRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Video, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM videos WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	videos := []*models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		videos = append(videos, v)
	}
	return videos, total, rows.Err()
}

func (r *VideoRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, meta *models.VideoMetadata) error {
	thumb := &meta.ThumbnailURL
	if meta.ThumbnailURL == "" {
		thumb = nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE videos SET title = COALESCE(NULLIF($1, ''), title), thumbnail_url = $2,
			duration_seconds = $3, status = 'ready'
		WHERE id = $4`,
		meta.Title, thumb, meta.DurationSeconds, id,
	)
	return err
}

func (r *VideoRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE videos SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *VideoRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM videos WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
