package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/cache"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/config"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/gateway"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/poller"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/providers/oddsapi"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/providers/scores"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/reconciler"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/registry"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/store"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "live-sync").Logger()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)
	clock := clockwork.NewRealClock()

	snapshotStore := buildStore(ctx, cfg, log)

	topicCache := cache.New()
	subs := registry.New()
	h := hub.New(subs, m, log)
	go h.Run(ctx)

	scoresClient := scores.New(cfg.Providers.ScoresBaseURL, cfg.Poll.FetchTimeout)
	oddsClient := oddsapi.New(cfg.Providers.OddsBaseURL, cfg.Providers.OddsAPIKey, cfg.Poll.FetchTimeout)

	var sink poller.SnapshotSink
	if snapshotStore.Enabled() {
		sink = snapshotStore
	}
	pollers := poller.NewManager(ctx, cfg.Poll, scoresClient, oddsClient, topicCache, h, sink, clock, m, log)

	rec := reconciler.New(cfg.Sync.HistoryCapacity, clock, m, log)
	gw := gateway.New(cfg.Sports, subs, pollers, topicCache, h, rec, log)
	handler := handlers.New(h, gw, pollers, log)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Routes(promRegistry),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

// buildStore wires whichever downstream collaborators are configured.
// Both are optional; the core broadcasts regardless.
func buildStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) *store.Store {
	var mirror *store.Mirror
	if cfg.Redis.URL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, mirror disabled")
		} else {
			mirror = store.NewMirror(redisClient)
			log.Info().Msg("redis mirror enabled")
		}
	}

	var writer *store.GameWriter
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("postgres open failed, history writer disabled")
		} else if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Msg("postgres unreachable, history writer disabled")
		} else {
			writer = store.NewGameWriter(db)
			log.Info().Msg("snapshot history writer enabled")
		}
	}

	return store.New(mirror, writer, log)
}
