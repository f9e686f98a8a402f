package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/config"
	"github.com/tandem-app/checkin-server-go/internal/database"
	"github.com/tandem-app/checkin-server-go/internal/handler"
	"github.com/tandem-app/checkin-server-go/internal/jobs"
	"github.com/tandem-app/checkin-server-go/internal/middleware"
	"github.com/tandem-app/checkin-server-go/internal/redis"
	"github.com/tandem-app/checkin-server-go/internal/repository"
	"github.com/tandem-app/checkin-server-go/internal/service"
	"github.com/tandem-app/checkin-server-go/internal/sse"
	"github.com/tandem-app/checkin-server-go/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	noteRepo := repository.NewNoteRepository(db.DB)
	coupleRepo := repository.NewCoupleRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionStore := store.New(db, sessionRepo, noteRepo)

	presenceService := service.NewPresenceService(sessionStore, coupleRepo, broker)
	turnService := service.NewTurnService(sessionStore, broker)
	stepService := service.NewStepService(sessionStore, broker)
	noteService := service.NewNoteService(sessionStore, broker, cfg.NoteLockTTL())
	defer noteService.Close()
	sessionService := service.NewSessionService(sessionStore, sessionRepo, coupleRepo)

	authMiddleware := middleware.NewAuthMiddleware(participantRepo)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(redisClient.Client, cfg.CommandRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	cleanupJob := jobs.NewCleanupJob(sessionRepo, noteRepo, cfg.NoteLockTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	checkinHandler := handler.NewCheckinHandler(sessionService)
	commandHandler := handler.NewCommandHandler(presenceService, turnService, stepService, noteService)
	streamHandler := handler.NewStreamHandler(broker, presenceService, sessionService)
	maintenanceHandler := handler.NewMaintenanceHandler(cleanupJob, cfg.MaintenancePasswordHash)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/checkins", func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		// The event stream stays open; only commands are rate limited.
		r.Get("/{sessionID}/events", streamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler)
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Post("/{sessionID}/commands", commandHandler.ServeHTTP)
			r.Mount("/", checkinHandler.Routes())
		})
	})

	r.Post("/maintenance/sweep", maintenanceHandler.Sweep)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
