package models

import (
	"time"

	"github.com/google/uuid"
)

const JobTypeVideoMetadata = "video-metadata"

type Job struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Type         string     `json:"type"` // "video-metadata"
	ReferenceID  uuid.UUID  `json:"reference_id"`
	Status       string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int        `json:"retry_count"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WatchEvent is pushed to the guardian's activity feed.
type WatchEvent struct {
	SessionID        uuid.UUID `json:"session_id"`
	ProfileID        uuid.UUID `json:"profile_id"`
	VideoID          uuid.UUID `json:"video_id"`
	Reason           string    `json:"reason,omitempty"`
	ElapsedSeconds   int       `json:"elapsed_seconds"`
	RemainingMinutes *int      `json:"remaining_minutes,omitempty"`
	At               time.Time `json:"at"`
}

type VideoReadyEvent struct {
	JobID   uuid.UUID `json:"job_id"`
	VideoID uuid.UUID `json:"video_id"`
	Status  string    `json:"status"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// EngineError is the flat body used by the watch-session endpoints.
type EngineError struct {
	Error string `json:"error"`
}

type JobErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}
