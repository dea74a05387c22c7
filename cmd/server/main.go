package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tapplay-backend/internal/config"
	"tapplay-backend/internal/database"
	"tapplay-backend/internal/handlers"
	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/metrics"
	"tapplay-backend/internal/middleware"
	"tapplay-backend/internal/repository"
	"tapplay-backend/internal/router"
	"tapplay-backend/internal/services"
	"tapplay-backend/internal/validation"
	"tapplay-backend/internal/websocket"
	"tapplay-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info().Str("env", cfg.Env).Msg("Starting TapPlay backend")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()
	logging.Info().Msg("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClients.Close()
	logging.Info().Msg("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		logging.Fatal().Err(err).Msg("Database migration failed")
	}
	logging.Info().Msg("Database migrations applied")

	// ──── Metrics ────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	profileRepo := repository.NewProfileRepo(pool)
	videoRepo := repository.NewVideoRepo(pool)
	chipRepo := repository.NewChipRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	sessionRepo := repository.NewWatchSessionRepo(pool)
	dailyRepo := repository.NewDailyWatchRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Main)
	authService := services.NewAuthService(userRepo, redisClients.Main, jwtAuth)
	metadataService := services.NewVideoMetadataService(redisClients.Main, cfg.MetadataCacheTTL, m)
	watchService := services.NewWatchService(
		sessionRepo,
		dailyRepo,
		profileRepo,
		chipRepo,
		videoRepo,
		services.TamperGuard{
			Grace:          cfg.TamperGrace,
			RateMultiplier: cfg.TamperRateMultiplier,
			RateSlack:      cfg.TamperRateSlack,
		},
		publisher,
		m,
		cfg.Location(),
	)

	// ──── Initialize Handlers ────
	v := validation.New()
	queue := worker.NewQueue(redisClients.Main)
	authHandler := handlers.NewAuthHandler(authService, v)
	profileHandler := handlers.NewProfileHandler(profileRepo, v)
	videoHandler := handlers.NewVideoHandler(videoRepo, jobRepo, queue, v)
	chipHandler := handlers.NewChipHandler(chipRepo, profileRepo, videoRepo, v)
	watchHandler := handlers.NewWatchSessionHandler(watchService, v)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Main, metadataService, videoRepo, jobRepo, publisher, cfg.WorkerCount)
	workerPool.Start()

	var sweeper *services.SessionSweeper
	if cfg.SessionSweepEnabled {
		sweeper = services.NewSessionSweeper(watchService, cfg.SessionSweepInterval, cfg.SessionStaleAfter)
		sweeper.Start()
	}

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(websocket.NewRedisUpdates(redisClients.PubSub), jwtAuth, cfg.FrontendURL)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		profileHandler,
		videoHandler,
		chipHandler,
		watchHandler,
		jobHandler,
		wsHub,
		router.Options{
			FrontendURL:            cfg.FrontendURL,
			RateLimitPerMinute:     cfg.RateLimitPerMinute,
			AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
			Metrics:                registry,
		},
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logging.Info().Msg("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown failed")
		}

		wsHub.Shutdown()
		workerPool.Stop()
		if sweeper != nil {
			sweeper.Stop()
		}
	}()

	logging.Info().
		Str("port", cfg.Port).
		Str("api", "/api/v1").
		Str("ws", "/api/v1/ws").
		Str("timezone", cfg.Location().String()).
		Msg("TapPlay backend ready")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("Server error")
	}
	<-done
}
