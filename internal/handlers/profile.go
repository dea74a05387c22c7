package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/validation"
)

type profileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type ProfileHandler struct {
	profiles  profileStore
	validator *validation.Validator
}

func NewProfileHandler(profiles profileStore, v *validation.Validator) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, validator: v}
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list profiles", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	profile := &models.Profile{
		UserID:            middleware.GetUserID(r.Context()),
		Name:              strings.TrimSpace(req.Name),
		Age:               req.Age,
		Avatar:            req.Avatar,
		DailyLimitMinutes: req.DailyLimitMinutes,
	}
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create profile")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create profile", r))
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.ownedProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update replaces all editable fields. Omitting daily_limit_minutes removes the limit.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.ownedProfile(w, r)
	if !ok {
		return
	}

	var req models.ProfileRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	profile.Name = strings.TrimSpace(req.Name)
	profile.Age = req.Age
	profile.Avatar = req.Avatar
	profile.DailyLimitMinutes = req.DailyLimitMinutes

	if err := h.profiles.Update(r.Context(), profile); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update profile", r))
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("profile_id", profile.ID.String()).
		Interface("daily_limit_minutes", profile.DailyLimitMinutes).
		Msg("Profile updated")

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid profile ID", r))
		return
	}

	if err := h.profiles.Delete(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete profile", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile deleted"})
}

func (h *ProfileHandler) ownedProfile(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid profile ID", r))
		return nil, false
	}

	profile, err := h.profiles.GetByID(r.Context(), id)
	if err != nil || profile.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Profile not found", r))
		return nil, false
	}
	return profile, true
}
