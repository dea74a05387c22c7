package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/repository"
	"tapplay-backend/internal/validation"
)

var chipUIDRe = regexp.MustCompile(`^([0-9A-F]{2}:){3,9}[0-9A-F]{2}$`)

// normalizeChipUID upper-cases a reader UID like "04:a2:3b:91" and reports
// whether it is well formed.
func normalizeChipUID(uid string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(uid))
	return normalized, chipUIDRe.MatchString(normalized)
}

type chipStore interface {
	Create(ctx context.Context, c *models.NFCChip) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.NFCChip, error)
	GetByUID(ctx context.Context, uid string) (*models.NFCChip, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.NFCChip, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPlaylist(ctx context.Context, chipID uuid.UUID, videoIDs []uuid.UUID) error
	Playlist(ctx context.Context, chipID uuid.UUID, maxAge int) ([]*models.Video, error)
}

type profileGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type videoGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

type ChipHandler struct {
	chips     chipStore
	profiles  profileGetter
	videos    videoGetter
	validator *validation.Validator
}

func NewChipHandler(chips chipStore, profiles profileGetter, videos videoGetter, v *validation.Validator) *ChipHandler {
	return &ChipHandler{chips: chips, profiles: profiles, videos: videos, validator: v}
}

func (h *ChipHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterChipRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	uid, ok := normalizeChipUID(req.UID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"uid": "uid must look like 04:A2:3B:91"}, r))
		return
	}

	profileID, _ := uuid.Parse(req.ProfileID)
	if !h.ownsProfile(r, profileID) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
		return
	}

	chip := &models.NFCChip{
		ProfileID: profileID,
		UID:       uid,
		Label:     strings.TrimSpace(req.Label),
	}
	if err := h.chips.Create(r.Context(), chip); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "This chip is already registered", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to register chip", r))
		return
	}

	logging.Ctx(r.Context()).Info().Str("chip_id", chip.ID.String()).Str("profile_id", profileID.String()).Msg("NFC chip registered")
	writeJSON(w, http.StatusCreated, chip)
}

// List returns the chips of the profile given by ?profile_id=.
func (h *ChipHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(r.URL.Query().Get("profile_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "profile_id is required", r))
		return
	}
	if !h.ownsProfile(r, profileID) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
		return
	}

	chips, err := h.chips.ListByProfile(r.Context(), profileID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list chips", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chips": chips})
}

func (h *ChipHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	chip, ok := h.ownedChip(w, r)
	if !ok {
		return
	}

	var req models.SetChipActiveRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.chips.SetActive(r.Context(), chip.ID, req.IsActive); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update chip", r))
		return
	}

	chip.IsActive = req.IsActive
	writeJSON(w, http.StatusOK, chip)
}

func (h *ChipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chip, ok := h.ownedChip(w, r)
	if !ok {
		return
	}

	if err := h.chips.Delete(r.Context(), chip.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete chip", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chip deleted"})
}

func (h *ChipHandler) SetPlaylist(w http.ResponseWriter, r *http.Request) {
	chip, ok := h.ownedChip(w, r)
	if !ok {
		return
	}

	var req models.SetPlaylistRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	videoIDs := make([]uuid.UUID, 0, len(req.VideoIDs))
	for _, raw := range req.VideoIDs {
		id, _ := uuid.Parse(raw)
		video, err := h.videos.GetByID(r.Context(), id)
		if err != nil || video.UserID != userID {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
			return
		}
		videoIDs = append(videoIDs, id)
	}

	if err := h.chips.SetPlaylist(r.Context(), chip.ID, videoIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"video_ids": "video_ids must not repeat"}, r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save playlist", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chip_id": chip.ID, "video_ids": videoIDs})
}

func (h *ChipHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	chip, ok := h.ownedChip(w, r)
	if !ok {
		return
	}

	videos, err := h.chips.Playlist(r.Context(), chip.ID, -1)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load playlist", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

// Scan resolves a tapped chip to its playlist, filtered to videos that are
// ready and suitable for the child's age.
func (h *ChipHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanChipRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	profileID, _ := uuid.Parse(req.ProfileID)
	profile, err := h.profiles.GetByID(r.Context(), profileID)
	if err != nil || profile.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
		return
	}

	uid, ok := normalizeChipUID(req.UID)
	if !ok {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Invalid NFC chip", r))
		return
	}

	chip, err := h.chips.GetByUID(r.Context(), uid)
	if err != nil || chip.ProfileID != profileID || !chip.IsActive {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Invalid NFC chip", r))
		return
	}

	playlist, err := h.chips.Playlist(r.Context(), chip.ID, profile.Age)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load playlist", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ScanChipResponse{
		ChipID:    chip.ID,
		ProfileID: profileID,
		Playlist:  playlist,
	})
}

func (h *ChipHandler) ownsProfile(r *http.Request, profileID uuid.UUID) bool {
	profile, err := h.profiles.GetByID(r.Context(), profileID)
	return err == nil && profile.UserID == middleware.GetUserID(r.Context())
}

// ownedChip hides chips of other guardians behind a 404.
func (h *ChipHandler) ownedChip(w http.ResponseWriter, r *http.Request) (*models.NFCChip, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chip ID", r))
		return nil, false
	}

	chip, err := h.chips.GetByID(r.Context(), id)
	if err != nil || !h.ownsProfile(r, chip.ProfileID) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chip not found", r))
		return nil, false
	}
	return chip, true
}
