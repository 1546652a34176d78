package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/genzai-dev/genzai/internal/api"
	"github.com/genzai-dev/genzai/internal/config"
	"github.com/genzai-dev/genzai/internal/gateway"
	"github.com/genzai-dev/genzai/internal/media"
	"github.com/genzai-dev/genzai/internal/orchestrator"
	"github.com/genzai-dev/genzai/internal/session"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.NewStore(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open session store")
	}
	defer store.Close()

	catalog := config.NewCatalog(cfg.ModelCatalogPath)
	if cfg.ModelCatalogPath != "" {
		watcher, err := config.WatchCatalog(catalog)
		if err != nil {
			log.Warn().Err(err).Msg("model catalog watcher unavailable")
		} else {
			defer watcher.Close()
		}
	}

	encoder, err := media.NewEncoder(cfg.MaxAttachmentSize)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid attachment size limit")
	}

	// A missing credential is not fatal: the server still serves sessions
	// and reports the configuration error per chat request.
	gw, err := gateway.NewFromEnv(cfg.Provider)
	if err != nil {
		log.Warn().Err(err).Msg("completion provider unavailable")
		gw = nil
	}

	var completer orchestrator.Completer
	if gw != nil {
		completer = gw
	}
	orch := orchestrator.New(store, completer, encoder, catalog)
	handler := api.NewHandler(orch, gw, store, catalog, cfg.WebDir)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler.Routes(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Int("sessions", store.Len()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown did not finish cleanly")
	}
}
