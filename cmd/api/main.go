package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/minesweeper-replay/internal/api"
	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/service"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/internal/storage/backend"
	"github.com/minesweeper-replay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithWriter(os.Stdout, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = backend.With(ctx, cfg, log, func(store storage.RecordStore) error {
		return serve(ctx, cfg, log, store)
	})
	if err != nil {
		log.Error("Server failed", logger.Err(err))
		os.Exit(1)
	}

	log.Info("Server exited")
}

// serve runs the HTTP server until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, store storage.RecordStore) error {
	gameService := service.NewGameService(store, cfg.Game, log)
	handler := api.NewHandler(gameService, log)

	// Setup router
	router := chi.NewRouter()

	// Middleware
	router.Use(api.RequestIDMiddleware)
	router.Use(middleware.RealIP)
	router.Use(api.LoggingMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Routes
	router.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", logger.F("addr", cfg.Address()), logger.F("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
