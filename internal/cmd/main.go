package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/config"
	"github.com/clanarena/draftauction/internal/engine"
	"github.com/clanarena/draftauction/internal/gateway"
	"github.com/clanarena/draftauction/internal/projection"
	"github.com/clanarena/draftauction/internal/relay"
	"github.com/clanarena/draftauction/internal/scrim"
	"github.com/clanarena/draftauction/internal/store"
	"github.com/clanarena/draftauction/internal/store/memory"
	"github.com/clanarena/draftauction/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.LoadServer(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := setupDatabase(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		st = postgres.New(pool)
	case "memory":
		log.Warn().Msg("using in-memory store, auctions will not survive a restart")
		st = memory.New()
	default:
		log.Fatal().Str("store_backend", cfg.StoreBackend).Msg("unknown store backend")
	}

	var creator scrim.Creator = scrim.NoopCreator{}
	if cfg.ScrimServiceURL != "" {
		creator = scrim.NewHTTPCreator(cfg.ScrimServiceURL)
	}

	clock := clockwork.NewRealClock()
	eng := engine.New(st, clock, creator)
	proj := projection.New(st, clock)
	cm := gateway.NewConnectionManager()

	var publisher gateway.EventPublisher
	if cfg.NATSURL != "" {
		r, err := relay.New(cfg.NATSURL, cm)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start event relay")
		}
		defer r.Close()
		publisher = r
	}

	svc := gateway.NewService(eng, proj, cm, publisher, clock)

	go cm.Run(ctx)

	// Restart countdowns for rounds that were live before the last restart.
	deadlines, err := st.ActiveDeadlines(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active deadlines")
	}
	for auctionID, deadline := range deadlines {
		log.Info().
			Str("auction_id", auctionID.String()).
			Time("deadline", deadline).
			Msg("rehydrating round timer")
		svc.RehydrateTimer(auctionID, deadline)
	}

	server := setupServer(cfg, svc)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("auction gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	svc.Scheduler().StopAll()
	cancel()

	log.Info().Msg("auction gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
