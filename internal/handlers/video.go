package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/repository"
	"tapplay-backend/internal/services"
	"tapplay-backend/internal/validation"
)

type videoStore interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Video, int, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type jobCreator interface {
	Create(ctx context.Context, j *models.Job) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type VideoHandler struct {
	videos    videoStore
	jobs      jobCreator
	queue     jobEnqueuer
	validator *validation.Validator
}

func NewVideoHandler(videos videoStore, jobs jobCreator, queue jobEnqueuer, v *validation.Validator) *VideoHandler {
	return &VideoHandler{videos: videos, jobs: jobs, queue: queue, validator: v}
}

// Add registers a video by share URL. Title and duration are filled in by
// the video-metadata job.
func (h *VideoHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.AddVideoRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	platform, platformID, err := services.ParseVideoURL(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"url": "Only YouTube, Vimeo and Dailymotion links are supported"}, r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	video := &models.Video{
		UserID:          userID,
		Platform:        platform,
		PlatformVideoID: platformID,
		SourceURL:       req.URL,
		AgeRating:       req.AgeRating,
	}
	if err := h.videos.Create(r.Context(), video); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "This video is already in your library", r))
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create video")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to add video", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeVideoMetadata,
		ReferenceID: video.ID,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to enqueue video-metadata job")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Metadata queue is unavailable", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"video":  video,
		"job_id": job.ID,
	})
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	videos, total, err := h.videos.ListByUser(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list videos", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return
	}

	video, err := h.videos.GetByID(r.Context(), id)
	if err != nil || video.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return
	}

	writeJSON(w, http.StatusOK, video)
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return
	}

	if err := h.videos.Delete(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete video", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Video deleted"})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
