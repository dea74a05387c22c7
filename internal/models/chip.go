package models

import (
	"time"

	"github.com/google/uuid"
)

type NFCChip struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	UID       string    `json:"uid"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterChipRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
	UID       string `json:"uid" validate:"required"`
	Label     string `json:"label" validate:"max=60"`
}

type SetChipActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type SetPlaylistRequest struct {
	VideoIDs []string `json:"video_ids" validate:"max=100,dive,uuid"`
}

type ScanChipRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
	UID       string `json:"uid" validate:"required"`
}

type ScanChipResponse struct {
	ChipID    uuid.UUID `json:"nfc_chip_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Playlist  []*Video  `json:"playlist"`
}
