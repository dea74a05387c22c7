package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a child profile. DailyLimitMinutes nil means no limit.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Name              string    `json:"name"`
	Age               int       `json:"age"`
	Avatar            *string   `json:"avatar"`
	DailyLimitMinutes *int      `json:"daily_limit_minutes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ProfileRequest struct {
	Name              string  `json:"name" validate:"required,max=60"`
	Age               int     `json:"age" validate:"min=0,max=18"`
	Avatar            *string `json:"avatar" validate:"omitempty,max=255"`
	DailyLimitMinutes *int    `json:"daily_limit_minutes" validate:"omitempty,min=1,max=1440"`
}

// DailyWatchTimeResponse reports today's aggregate. Limit fields are null when unlimited.
type DailyWatchTimeResponse struct {
	ProfileID      uuid.UUID `json:"profile_id"`
	Date           string    `json:"date"`
	WatchedMinutes int       `json:"watched_minutes"`
	DailyLimit     *int      `json:"daily_limit"`
	Remaining      *int      `json:"remaining"`
}
