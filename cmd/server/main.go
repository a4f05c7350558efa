package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/config"
	"github.com/cappiels/chat-notify-api/internal/gateway"
	"github.com/cappiels/chat-notify-api/internal/handlers"
	"github.com/cappiels/chat-notify-api/internal/middleware"
	"github.com/cappiels/chat-notify-api/internal/migration"
	"github.com/cappiels/chat-notify-api/internal/notification"
	"github.com/cappiels/chat-notify-api/internal/presence"
	"github.com/cappiels/chat-notify-api/internal/repository"
	"github.com/cappiels/chat-notify-api/internal/routes"
	"github.com/cappiels/chat-notify-api/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config   *config.Config
	db       *sql.DB
	logger   zerolog.Logger
	tracker  *presence.MemoryTracker
	service  *notification.Service
	delivery *worker.Worker
	sweeper  *worker.Sweeper
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Repositories.
	tokenRepo := repository.NewTokenRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	logRepo := repository.NewDeliveryLogRepository(db)

	// Presence tracker fed by the heartbeat endpoint.
	tracker := presence.NewMemoryTracker(cfg.Presence.ActiveWindow)

	// Eligibility resolver and producer-facing service.
	resolver := notification.NewResolver(tokenRepo, prefRepo, tracker, logger)
	service := notification.NewService(queueRepo, badgeRepo, prefRepo, resolver, logger)

	// Push gateway client used by the delivery worker.
	pushGateway := gateway.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.AccessToken, cfg.Gateway.Timeout)

	deliveryWorker := worker.New(worker.Config{
		PollInterval:      cfg.Worker.PollInterval,
		BatchSize:         cfg.Worker.BatchSize,
		FanoutConcurrency: cfg.Worker.FanoutConcurrency,
	}, queueRepo, tokenRepo, prefRepo, logRepo, pushGateway, logger)

	sweeper := worker.NewSweeper(worker.RetentionConfig{
		TokenIdleDays: cfg.Retention.TokenIdleDays,
		QueueDays:     cfg.Retention.QueueDays,
		LogDays:       cfg.Retention.LogDays,
	}, tokenRepo, prefRepo, queueRepo, logRepo, logger)

	app := &application{
		config:   cfg,
		db:       db,
		logger:   logger,
		tracker:  tracker,
		service:  service,
		delivery: deliveryWorker,
		sweeper:  sweeper,
	}

	// Start the delivery worker and retention sweeper.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go app.delivery.Start(workerCtx)
	stopSweeper := app.sweeper.Start(workerCtx)

	// Initialize the HTTP router and middleware.
	router := app.initRouter(tokenRepo, logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, func() {
		stopSweeper()
		stopWorkers()
	}, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(tokenRepo repository.TokenRepository, logger zerolog.Logger) http.Handler {
	deviceHandler := handlers.NewDeviceHandler(tokenRepo, app.tracker, logger)
	prefHandler := handlers.NewPreferenceHandler(app.service, logger)
	notificationHandler := handlers.NewNotificationHandler(app.service, logger)

	return routes.NewRouter(app.config.JWTSecret, deviceHandler, prefHandler, notificationHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, stopBackground func(), logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the delivery worker and retention sweeper.
	logger.Info().Msg("Stopping background workers...")
	stopBackground()
	logger.Info().Msg("Background workers stopped.")
}
