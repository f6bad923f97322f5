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

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	"github.com/doorcrew/scanner-server-go/internal/config"
	"github.com/doorcrew/scanner-server-go/internal/database"
	"github.com/doorcrew/scanner-server-go/internal/handler"
	"github.com/doorcrew/scanner-server-go/internal/jobs"
	"github.com/doorcrew/scanner-server-go/internal/middleware"
	"github.com/doorcrew/scanner-server-go/internal/redis"
	"github.com/doorcrew/scanner-server-go/internal/registry"
	"github.com/doorcrew/scanner-server-go/internal/service"
	"github.com/doorcrew/scanner-server-go/internal/sse"
	"github.com/doorcrew/scanner-server-go/internal/ticket"
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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	var sink analytics.Sink = analytics.NewLogSink()
	if cfg.DatabaseURL != "" {
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

		sink = analytics.NewPostgresSink(db.DB)
	}

	recorder := analytics.NewRecorder(sink, cfg.AnalyticsBuffer)
	recorder.Start()
	defer recorder.Stop()

	pairingRegistry := registry.NewPairingRegistry()
	sessionRegistry := registry.NewSessionRegistry()
	deviceRegistry := registry.NewDeviceRegistry()

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	ticketClient := ticket.NewHTTPClient(cfg.TicketServiceURL, cfg.TicketTimeout())

	pairingService := service.NewPairingService(pairingRegistry, recorder, broker)
	sessionService := service.NewSessionService(pairingRegistry, sessionRegistry, deviceRegistry, recorder, broker)
	scanService := service.NewScanService(sessionRegistry, deviceRegistry, ticketClient, recorder, broker, cfg.TicketTimeout())
	revocationService := service.NewRevocationService(sessionRegistry, recorder, broker)

	organizerAuth := middleware.NewOrganizerAuthMiddleware(cfg.OrganizerTokenSecret)
	scannerAuth := middleware.NewScannerAuthMiddleware(sessionRegistry)
	claimRateLimit := middleware.NewClaimRateLimitMiddleware(redisClient.Client, cfg.ClaimRateLimitPerMin)

	organizerHandler := handler.NewOrganizerHandler(pairingService, sessionService, revocationService)
	scannerHandler := handler.NewScannerHandler(sessionService, scanService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(organizerAuth.Handler)
			r.Mount("/", organizerHandler.Routes())
			r.Get("/events/{eventID}/stream", eventsHandler.ServeHTTP)
		})

		r.Route("/scanners", func(r chi.Router) {
			r.With(claimRateLimit.Handler).Post("/claim", scannerHandler.Claim)

			r.Group(func(r chi.Router) {
				r.Use(scannerAuth.Handler)
				r.Get("/session", scannerHandler.Refresh)
				r.Post("/rename", scannerHandler.Rename)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(scannerAuth.Handler)
			r.Post("/scans", scannerHandler.ValidateScan)
		})
	})

	sweepJob := jobs.NewSweepJob(pairingRegistry, sessionRegistry, recorder, config.SweepJobInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

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
