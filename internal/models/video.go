package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlatformYouTube     = "youtube"
	PlatformVimeo       = "vimeo"
	PlatformDailymotion = "dailymotion"

	VideoStatusPending = "pending"
	VideoStatusReady   = "ready"
	VideoStatusFailed  = "failed"
)

type Video struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Platform        string    `json:"platform"`
	PlatformVideoID string    `json:"platform_video_id"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
	ThumbnailURL    *string   `json:"thumbnail_url"`
	DurationSeconds int       `json:"duration_seconds"`
	AgeRating       int       `json:"age_rating"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type AddVideoRequest struct {
	URL       string `json:"url" validate:"required,url"`
	AgeRating int    `json:"age_rating" validate:"min=0,max=18"`
}

// VideoMetadata is what a platform lookup yields.
type VideoMetadata struct {
	Platform        string `json:"platform"`
	PlatformVideoID string `json:"platform_video_id"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
}
