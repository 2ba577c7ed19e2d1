package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/cart"
	"studio/internal/catalog"
	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/jobs"
	"studio/internal/middleware"
	"studio/internal/providers/creatomate"
	"studio/internal/providers/genai"
	"studio/internal/providers/instagram"
	"studio/internal/providers/openai"
	"studio/internal/providers/pexels"
	"studio/internal/providers/runway"
	"studio/internal/providers/stability"
	"studio/internal/providers/tiktok"
	"studio/internal/realtime"
	"studio/internal/social"
	"studio/internal/storage"
	"studio/internal/video"
	"studio/internal/website"
)

const jobSnapshotTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	// Redis is optional: without it carts and rate limits stay in process and
	// job snapshots go to Postgres.
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-process stores")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	store, err := storage.New(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	keys := credentials.NewStore(runner).ResolveAll(ctx, cfg, &logger)
	httpClient := &http.Client{Timeout: 60 * time.Second}

	var (
		jobStore     jobs.Store = repo.NewJobSnapshotRepository(runner)
		cartStore    cart.Store = cart.NewMemoryStore()
		limiter      middleware.Limiter
		remoteEvents *jobs.RedisStore
	)
	if rdb != nil {
		remoteEvents = jobs.NewRedisStore(rdb, jobSnapshotTTL)
		jobStore = remoteEvents
		cartStore = cart.NewRedisStore(rdb, cfg.CartTTL)
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitPerMin, time.Minute)
	}
	tracker := jobs.NewTracker(jobs.Options{
		Store:                jobStore,
		Logger:               &logger,
		MaxConsecutiveErrors: cfg.PollMaxConsecutiveErrs,
	})
	defer tracker.Close()

	tikTokKey, tikTokSecret, _ := cfg.TikTokCredentials()
	igID, igSecret, _ := cfg.InstagramCredentials()
	tt := tiktok.NewClient(tiktok.Options{ClientKey: tikTokKey, ClientSecret: tikTokSecret, HTTPClient: httpClient, Logger: &logger})
	ig := instagram.NewClient(instagram.Options{AppID: igID, AppSecret: igSecret, HTTPClient: httpClient, Logger: &logger})
	tokens := repo.NewSocialTokenRepository(runner)

	oa := openai.NewClient(openai.Options{
		APIKey:     keys[credentials.ProviderOpenAI],
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIRealtimeModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	cat := catalog.Default()

	app := &handlers.App{
		Config:  cfg,
		Logger:  logger,
		Tracker: tracker,
		OAuth: social.NewOAuthService(social.OAuthOptions{
			TikTok:        tt,
			Instagram:     ig,
			Tokens:        tokens,
			RedirectURL:   cfg.RedirectURL,
			CookieKey:     []byte(cfg.SupabaseJWTSecret),
			SecureCookies: strings.HasPrefix(cfg.AppHost, "https://"),
			Logger:        &logger,
		}),
		Publisher: social.NewPublisher(social.PublisherOptions{
			Tokens:    social.NewTokenSource(tokens, tt, &logger),
			Repo:      tokens,
			TikTok:    tt,
			Instagram: ig,
			Media:     social.NewMediaUploader(store),
			Tracker:   tracker,
			Logger:    &logger,
		}),
		Video: video.NewService(video.Options{
			Creatomate: creatomate.NewClient(creatomate.Options{APIKey: keys[credentials.ProviderCreatomate], HTTPClient: httpClient, Logger: &logger}),
			Runway:     runway.NewClient(runway.Options{APIKey: keys[credentials.ProviderRunway], HTTPClient: httpClient, Logger: &logger}),
			Stability:  stability.NewClient(stability.Options{APIKey: keys[credentials.ProviderStability], HTTPClient: httpClient, Logger: &logger}),
			Store:      store,
			Tracker:    tracker,
			Logger:     &logger,
		}),
		Websites: website.NewGenerator(website.Options{
			Planner: genai.NewClient(genai.Options{
				APIKey:     keys[credentials.ProviderGemini],
				BaseURL:    cfg.GeminiBaseURL,
				Model:      cfg.GeminiModel,
				HTTPClient: httpClient,
				Logger:     &logger,
			}),
			Images:  pexels.NewClient(pexels.Options{APIKey: keys[credentials.ProviderPexels], HTTPClient: httpClient, Logger: &logger}),
			Store:   store,
			Tracker: tracker,
			Logger:  &logger,
		}),
		Catalog:        cat,
		Cart:           cart.NewService(cartStore, cat, &logger),
		Realtime:       oa,
		RealtimeDialer: realtime.WSDialer{URL: oa.RealtimeURL()},
		Checks: map[string]func(context.Context) error{
			"postgres": dbpool.Ping,
		},
		Upgrader: websocket.Upgrader{CheckOrigin: originChecker(cfg.CORSAllowedOrigins)},
	}
	if fs, ok := store.(*storage.FileStore); ok {
		app.Files = fs.Handler()
	}
	if rdb != nil {
		app.RemoteEvents = remoteEvents
		app.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	router := httpapi.NewRouter(app, limiter)
	server := infra.NewHTTPServer(cfg, router)
	app.Streams = server.StreamContext()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// originChecker admits websocket upgrades from the CORS allow-list. Requests
// without an Origin header come from non-browser clients.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, strings.TrimRight(origin, "/"))
	}
}
