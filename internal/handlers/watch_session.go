package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/services"
	"tapplay-backend/internal/validation"
)

type watchController interface {
	Start(ctx context.Context, ownerID, profileID, chipID, videoID uuid.UUID) (*models.StartWatchResponse, error)
	Heartbeat(ctx context.Context, ownerID, sessionID uuid.UUID, position int) (*models.HeartbeatResponse, error)
	End(ctx context.Context, ownerID, sessionID uuid.UUID, reason string, finalPosition *int) (*models.EndWatchResponse, error)
	DailyWatchTime(ctx context.Context, ownerID, profileID uuid.UUID) (*models.DailyWatchTimeResponse, error)
}

// WatchSessionHandler serves the player endpoints. Their error bodies are the
// flat {"error": "..."} form the kid-facing player renders directly.
type WatchSessionHandler struct {
	watch     watchController
	validator *validation.Validator
}

func NewWatchSessionHandler(watch watchController, v *validation.Validator) *WatchSessionHandler {
	return &WatchSessionHandler{watch: watch, validator: v}
}

func (h *WatchSessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartWatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Already checked by the uuid validation tag.
	profileID, _ := uuid.Parse(req.ProfileID)
	chipID, _ := uuid.Parse(req.NFCChipID)
	videoID, _ := uuid.Parse(req.VideoID)

	resp, err := h.watch.Start(r.Context(), middleware.GetUserID(r.Context()), profileID, chipID, videoID)
	if err != nil {
		handleWatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *WatchSessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.EngineError{Error: "Session not found"})
		return
	}

	var req models.HeartbeatRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.watch.Heartbeat(r.Context(), middleware.GetUserID(r.Context()), sessionID, *req.CurrentPositionSeconds)
	if err != nil {
		handleWatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *WatchSessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.EngineError{Error: "Session not found or already ended"})
		return
	}

	var req models.EndWatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.watch.End(r.Context(), middleware.GetUserID(r.Context()), sessionID, req.StoppedReason, req.FinalPositionSeconds)
	if err != nil {
		handleWatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// WatchTime reports today's minutes for a profile.
func (h *WatchSessionHandler) WatchTime(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.EngineError{Error: "Profile not found"})
		return
	}

	resp, err := h.watch.DailyWatchTime(r.Context(), middleware.GetUserID(r.Context()), profileID)
	if err != nil {
		handleWatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *WatchSessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.EngineError{Error: "Invalid request body"})
		return false
	}
	if fields := h.validator.Struct(dst); fields != nil {
		writeJSON(w, http.StatusBadRequest, models.EngineError{Error: firstFieldMessage(fields)})
		return false
	}
	return true
}

func firstFieldMessage(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fields[keys[0]]
}

func handleWatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.LimitReachedError:
		writeJSON(w, http.StatusForbidden, models.LimitReachedResponse{
			LimitReached:     true,
			RemainingMinutes: 0,
			Message:          e.Message,
		})
	case *services.InvalidPositionError:
		writeJSON(w, http.StatusBadRequest, models.EngineError{Error: e.Error()})
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, models.EngineError{Error: firstFieldMessage(e.Fields)})
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, models.EngineError{Error: e.Message})
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, models.EngineError{Error: e.Message})
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, models.EngineError{Error: e.Message})
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Watch session request failed")
		writeJSON(w, http.StatusInternalServerError, models.EngineError{Error: "Something went wrong"})
	}
}
