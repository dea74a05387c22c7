package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tapplay-backend/internal/handlers"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/websocket"
)

type Options struct {
	FrontendURL            string
	RateLimitPerMinute     int
	AuthRateLimitPerMinute int
	Metrics                prometheus.Gatherer
}

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	videoHandler *handlers.VideoHandler,
	chipHandler *handlers.ChipHandler,
	watchHandler *handlers.WatchSessionHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS(opts.FrontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.AuthRateLimitPerMinute))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RateLimit(opts.RateLimitPerMinute))

			r.Get("/me", authHandler.Me)

			// ──── Profile Routes ────
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", profileHandler.List)
				r.Post("/", profileHandler.Create)
				r.Get("/{id}", profileHandler.Get)
				r.Put("/{id}", profileHandler.Update)
				r.Delete("/{id}", profileHandler.Delete)
				r.Get("/{id}/watch-time", watchHandler.WatchTime)
			})

			// ──── Video Library Routes ────
			r.Route("/videos", func(r chi.Router) {
				r.Get("/", videoHandler.List)
				r.Post("/", videoHandler.Add)
				r.Get("/{id}", videoHandler.Get)
				r.Delete("/{id}", videoHandler.Delete)
			})

			// ──── NFC Chip Routes ────
			r.Route("/chips", func(r chi.Router) {
				r.Get("/", chipHandler.List)
				r.Post("/", chipHandler.Register)
				r.Post("/scan", chipHandler.Scan)
				r.Put("/{id}/active", chipHandler.SetActive)
				r.Delete("/{id}", chipHandler.Delete)
				r.Get("/{id}/playlist", chipHandler.GetPlaylist)
				r.Put("/{id}/playlist", chipHandler.SetPlaylist)
			})

			// ──── Watch Session Routes ────
			r.Route("/watch-sessions", func(r chi.Router) {
				r.Post("/start", watchHandler.Start)
				r.Post("/{id}/heartbeat", watchHandler.Heartbeat)
				r.Post("/{id}/end", watchHandler.End)
			})

			// ──── Job Routes ────
			r.Get("/jobs/{id}", jobHandler.GetJob)
		})
	})

	return r
}
