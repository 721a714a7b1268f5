package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stanstork/stratum-loader/internal/config"
	"github.com/stanstork/stratum-loader/internal/handlers"
	"github.com/stanstork/stratum-loader/internal/job"
	"github.com/stanstork/stratum-loader/internal/middleware"
	"github.com/stanstork/stratum-loader/internal/objectstore"
	"github.com/stanstork/stratum-loader/internal/routes"
	"github.com/stanstork/stratum-loader/internal/scheduler"
	"github.com/stanstork/stratum-loader/internal/warehouse"
)

type application struct {
	config    *config.Config
	store     objectstore.Store
	warehouse warehouse.Warehouse
	runner    *job.Runner
	logger    zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}

	ctx := context.Background()

	// Process-wide clients, shared by every job.
	store, err := objectstore.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open object store")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	wh, err := warehouse.Open(ctx, cfg.Warehouse.Driver, cfg.Warehouse.ProjectID, cfg.Warehouse.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open warehouse")
	}
	defer wh.Close()

	app := &application{
		config:    cfg,
		store:     store,
		warehouse: wh,
		logger:    logger,
		runner: job.NewRunner(store, wh, job.Settings{
			AssetsBucket:  cfg.AssetsBucket,
			TempDir:       cfg.TempDir,
			ArchivePrefix: cfg.ArchivePrefix,
			FixedPrefix:   cfg.FixedPrefix,
		}, logger),
	}

	sched, err := scheduler.New(app.runner, cfg.Schedules, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure schedules")
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter()
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSOrigins),
		h.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)
	recovered := h.RecoveryHandler(h.RecoveryLogger(log.Default()), h.PrintRecoveryStack(true))(corsHandler)

	// Start the HTTP server and handle graceful shutdown.
	if err := app.startServer(recovered, sched); err != nil {
		logger.Error().Err(err).Msg("Server error occurred")
	}

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter() http.Handler {
	checks := map[string]handlers.Pinger{}
	if p, ok := app.warehouse.(handlers.Pinger); ok {
		checks["warehouse"] = p
	}

	loadHandler := handlers.NewLoadHandler(app.runner, app.logger)
	healthHandler := handlers.NewHealthHandler(checks)

	return routes.NewRouter(loadHandler, healthHandler, routes.Options{
		JWTSecret: app.config.JWTSecret,
		RateLimit: app.config.RateLimit,
		RateBurst: app.config.RateBurst,
	})
}

// startServer runs the HTTP server and the scheduler until a signal arrives
// or the server fails, then shuts both down.
func (app *application) startServer(handler http.Handler, sched *scheduler.Scheduler) error {
	logger := app.logger
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sched.Len() > 0 {
		sched.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down...")

		// Jobs already running are not cancelled; give them time to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if sched.Len() > 0 {
			return sched.Stop(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
