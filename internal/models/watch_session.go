package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Stop reasons. The first five may be sent by clients; the rest are set by the server.
const (
	StopCompleted  = "completed"
	StopManual     = "manual"
	StopDailyLimit = "daily_limit"
	StopSwipeExit  = "swipe_exit"
	StopError      = "error"
	StopDisplaced  = "displaced"
	StopStale      = "stale"
)

type WatchSession struct {
	ID                  uuid.UUID  `json:"id"`
	ProfileID           uuid.UUID  `json:"profile_id"`
	VideoID             uuid.UUID  `json:"video_id"`
	NFCChipID           *uuid.UUID `json:"nfc_chip_id"`
	StartedAt           time.Time  `json:"started_at"`
	LastHeartbeatAt     time.Time  `json:"last_heartbeat_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	ElapsedSeconds      int        `json:"elapsed_seconds"`
	LastPositionSeconds int        `json:"last_position_seconds"`
	Status              string     `json:"status"`
	StoppedReason       *string    `json:"stopped_reason,omitempty"`
}

func (s *WatchSession) IsActive() bool {
	return s.Status == SessionActive
}

type StartWatchRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
	NFCChipID string `json:"nfc_chip_id" validate:"required,uuid"`
	VideoID   string `json:"video_id" validate:"required,uuid"`
}

type HeartbeatRequest struct {
	CurrentPositionSeconds *int `json:"current_position_seconds" validate:"required"`
}

type EndWatchRequest struct {
	StoppedReason        string `json:"stopped_reason" validate:"required,oneof=completed manual daily_limit swipe_exit error"`
	FinalPositionSeconds *int   `json:"final_position_seconds"`
}

type StartWatchResponse struct {
	SessionID         uuid.UUID `json:"session_id"`
	RemainingMinutes  *int      `json:"remaining_minutes"`
	DailyLimitMinutes *int      `json:"daily_limit_minutes"`
}

type HeartbeatResponse struct {
	SessionID        uuid.UUID `json:"session_id"`
	ElapsedSeconds   int       `json:"elapsed_seconds"`
	RemainingMinutes *int      `json:"remaining_minutes"`
	LimitReached     bool      `json:"limit_reached"`
}

type EndWatchResponse struct {
	SessionID         uuid.UUID `json:"session_id"`
	DurationSeconds   int       `json:"duration_seconds"`
	StoppedReason     string    `json:"stopped_reason"`
	TotalWatchedToday int       `json:"total_watched_today"`
}

// LimitReachedResponse is the 403 body for an exhausted daily allowance.
type LimitReachedResponse struct {
	LimitReached     bool   `json:"limit_reached"`
	RemainingMinutes int    `json:"remaining_minutes"`
	Message          string `json:"message"`
}
