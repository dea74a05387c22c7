package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tapplay-backend/internal/models"
)

type WatchSessionRepo struct {
	pool *pgxpool.Pool
}

func NewWatchSessionRepo(pool *pgxpool.Pool) *WatchSessionRepo {
	return &WatchSessionRepo{pool: pool}
}

const watchSessionColumns = `id, profile_id, video_id, nfc_chip_id, started_at, last_heartbeat_at, ended_at,
	elapsed_seconds, last_position_seconds, status, stopped_reason`

func scanWatchSession(row pgx.Row) (*models.WatchSession, error) {
	s := &models.WatchSession{}
	err := row.Scan(
		&s.ID, &s.ProfileID, &s.VideoID, &s.NFCChipID, &s.StartedAt, &s.LastHeartbeatAt, &s.EndedAt,
		&s.ElapsedSeconds, &s.LastPositionSeconds, &s.Status, &s.StoppedReason,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts an active session. The id is always generated here.
func (r *WatchSessionRepo) Create(ctx context.Context, s *models.WatchSession) error {
	s.ID = uuid.New()
	s.Status = models.SessionActive

	_, err := r.pool.Exec(ctx, `
		INSERT INTO watch_sessions (id, profile_id, video_id, nfc_chip_id, started_at, last_heartbeat_at,
			elapsed_seconds, last_position_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.ProfileID, s.VideoID, s.NFCChipID, s.StartedAt, s.LastHeartbeatAt,
		s.ElapsedSeconds, s.LastPositionSeconds, s.Status,
	)
	if isUniqueViolation(err) {
		return ErrActiveSessionExists
	}
	return err
}

func (r *WatchSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WatchSession, error) {
	return scanWatchSession(r.pool.QueryRow(ctx, `SELECT `+watchSessionColumns+` FROM watch_sessions WHERE id = $1`, id))
}

// GetActiveByProfile returns pgx.ErrNoRows when the profile has nothing playing.
func (r *WatchSessionRepo) GetActiveByProfile(ctx context.Context, profileID uuid.UUID) (*models.WatchSession, error) {
	return scanWatchSession(r.pool.QueryRow(ctx,
		`SELECT `+watchSessionColumns+` FROM watch_sessions WHERE profile_id = $1 AND status = 'active'`,
		profileID,
	))
}

// RecordHeartbeat stores accepted progress. Concurrent heartbeats are last-write-wins
// on the timestamp and position, but elapsed_seconds never moves backwards.
func (r *WatchSessionRepo) RecordHeartbeat(ctx context.Context, id uuid.UUID, elapsed, position int, at time.Time) (int, error) {
	var stored int
	err := r.pool.QueryRow(ctx, `
		UPDATE watch_sessions
		SET elapsed_seconds = GREATEST(elapsed_seconds, $2),
			last_position_seconds = $3,
			last_heartbeat_at = GREATEST(last_heartbeat_at, $4)
		WHERE id = $1 AND status = 'active'
		RETURNING elapsed_seconds`,
		id, elapsed, position, at,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSessionNotActive
	}
	return stored, err
}

// Finish moves an active session to a terminal status. Only one caller can win:
// the others get ErrSessionNotActive.
func (r *WatchSessionRepo) Finish(ctx context.Context, id uuid.UUID, status, reason string, elapsed, position int, at time.Time) (*models.WatchSession, error) {
	s, err := scanWatchSession(r.pool.QueryRow(ctx, `
		UPDATE watch_sessions
		SET status = $2,
			stopped_reason = $3,
			elapsed_seconds = GREATEST(elapsed_seconds, $4),
			last_position_seconds = $5,
			last_heartbeat_at = GREATEST(last_heartbeat_at, $6),
			ended_at = GREATEST(last_heartbeat_at, $6)
		WHERE id = $1 AND status = 'active'
		RETURNING `+watchSessionColumns,
		id, status, reason, elapsed, position, at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotActive
	}
	return s, err
}

// ListStale returns active sessions whose last heartbeat is older than before.
func (r *WatchSessionRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.WatchSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+watchSessionColumns+` FROM watch_sessions
		WHERE status = 'active' AND last_heartbeat_at < $1
		ORDER BY last_heartbeat_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*models.WatchSession{}
	for rows.Next() {
		s, err := scanWatchSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
