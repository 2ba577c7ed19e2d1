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

	"studio/internal/adapter/repo"
	"studio/internal/infra"
	"studio/internal/providers/tiktok"
	"studio/internal/social"
)

const (
	refreshWindow = 15 * time.Minute
	refreshBatch  = 50
)

type refresher interface {
	RefreshExpiring(ctx context.Context, window time.Duration, limit int) (refreshed, failed int, err error)
}

// tokenWorker refreshes TikTok tokens before they expire so publishes never
// wait on a refresh.
type tokenWorker struct {
	source   refresher
	interval time.Duration
	logger   infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	key, secret, err := cfg.TikTokCredentials()
	if err != nil {
		logger.Warn().Err(err).Msg("worker: tiktok credentials missing, refreshes will fail")
	}
	tt := tiktok.NewClient(tiktok.Options{
		ClientKey:    key,
		ClientSecret: secret,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Logger:       &logger,
	})

	worker := &tokenWorker{
		source:   social.NewTokenSource(repo.NewSocialTokenRepository(runner), tt, &logger),
		interval: cfg.TokenRefreshInterval,
		logger:   logger,
	}
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run refreshes once immediately and then on every interval until ctx ends.
func (w *tokenWorker) Run(ctx context.Context) error {
	interval := w.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	w.logger.Info().Dur("interval", interval).Msg("worker: started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *tokenWorker) tick(ctx context.Context) {
	refreshed, failed, err := w.source.RefreshExpiring(ctx, refreshWindow, refreshBatch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("worker: refresh pass failed")
		}
		return
	}
	if refreshed+failed == 0 {
		w.logger.Debug().Msg("worker: no tokens due")
		return
	}
	w.logger.Info().Int("refreshed", refreshed).Int("failed", failed).Msg("worker: refresh pass finished")
}
