package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"tapplay-backend/internal/handlers"
	"tapplay-backend/internal/metrics"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/validation"
	"tapplay-backend/internal/websocket"
)

type noTokens struct{}

func (noTokens) ParseToken(string) (uuid.UUID, error) { return uuid.Nil, middleware.ErrTokenInvalid }

type noUpdates struct{}

func (noUpdates) Updates(ctx context.Context, userID uuid.UUID) <-chan string { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SessionsStarted.Inc()

	v := validation.New()
	return New(
		middleware.NewJWTAuth("test-secret"),
		handlers.NewAuthHandler(nil, v),
		handlers.NewProfileHandler(nil, v),
		handlers.NewVideoHandler(nil, nil, nil, v),
		handlers.NewChipHandler(nil, nil, nil, v),
		handlers.NewWatchSessionHandler(nil, v),
		handlers.NewJobHandler(nil),
		websocket.NewHub(noUpdates{}, noTokens{}, ""),
		Options{
			FrontendURL:            "http://localhost:5173",
			RateLimitPerMinute:     100,
			AuthRateLimitPerMinute: 10,
			Metrics:                reg,
		},
	)
}

func TestRouter_Health(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header on every response")
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/watch-sessions/start",
		"/api/v1/chips/scan",
		"/api/v1/videos",
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusUnauthorized, rr.Code)
		}
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "\nwatch_sessions_started_total 1\n") {
		t.Fatalf("expected started counter in exposition, got:\n%s", body)
	}
}
