package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tapplay-backend/internal/models"
)

type ChipRepo struct {
	pool *pgxpool.Pool
}

func NewChipRepo(pool *pgxpool.Pool) *ChipRepo {
	return &ChipRepo{pool: pool}
}

const chipColumns = `id, profile_id, uid, label, is_active, created_at`

func scanChip(row pgx.Row) (*models.NFCChip, error) {
	c := &models.NFCChip{}
	if err := row.Scan(&c.ID, &c.ProfileID, &c.UID, &c.Label, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChipRepo) Create(ctx context.Context, c *models.NFCChip) error {
	c.ID = uuid.New()
	c.IsActive = true

	err := r.pool.QueryRow(ctx,
		`INSERT INTO nfc_chips (id, profile_id, uid, label, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		c.ID, c.ProfileID, c.UID, c.Label, c.IsActive,
	).Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ChipRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.NFCChip, error) {
	return scanChip(r.pool.QueryRow(ctx, `SELECT `+chipColumns+` FROM nfc_chips WHERE id = $1`, id))
}

func (r *ChipRepo) GetByUID(ctx context.Context, uid string) (*models.NFCChip, error) {
	return scanChip(r.pool.QueryRow(ctx, `SELECT `+chipColumns+` FROM nfc_chips WHERE uid = $1`, uid))
}

func (r *ChipRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.NFCChip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chipColumns+` FROM nfc_chips WHERE profile_id = $1 ORDER BY created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chips := []*models.NFCChip{}
	for rows.Next() {
		c, err := scanChip(rows)
		if err != nil {
			return nil, err
		}
		chips = append(chips, c)
	}
	return chips, rows.Err()
}

// IsActiveChipForProfile reports whether chipID is registered to profileID and enabled.
// Unknown chips and chips of other profiles both read as false.
func (r *ChipRepo) IsActiveChipForProfile(ctx context.Context, chipID, profileID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nfc_chips WHERE id = $1 AND profile_id = $2 AND is_active)`,
		chipID, profileID,
	).Scan(&ok)
	return ok, err
}

func (r *ChipRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.pool.Exec(ctx, "UPDATE nfc_chips SET is_active = $1 WHERE id = $2", active, id)
	return err
}

func (r *ChipRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM nfc_chips WHERE id = $1", id)
	return err
}

// SetPlaylist replaces the chip's ordered video list. Positions follow slice order.
func (r *ChipRepo) SetPlaylist(ctx context.Context, chipID uuid.UUID, videoIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM chip_videos WHERE chip_id = $1", chipID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, videoID := range videoIDs {
		batch.Queue("INSERT INTO chip_videos (chip_id, video_id, position) VALUES ($1, $2, $3)", chipID, videoID, i)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

// Playlist returns the chip's videos in playlist order, optionally only those
// ready to play and rated at or below maxAge (maxAge < 0 disables the filter).
func (r *ChipRepo) Playlist(ctx context.Context, chipID uuid.UUID, maxAge int) ([]*models.Video, error) {
	query := `SELECT v.id, v.user_id, v.platform, v.platform_video_id, v.source_url, v.title, v.thumbnail_url,
			v.duration_seconds, v.age_rating, v.status, v.created_at
		FROM chip_videos cv
		JOIN videos v ON v.id = cv.video_id
		WHERE cv.chip_id = $1
		  AND ($2 < 0 OR (v.age_rating <= $2 AND v.status = 'ready'))
		ORDER BY cv.position`

	rows, err := r.pool.Query(ctx, query, chipID, maxAge)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []*models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
