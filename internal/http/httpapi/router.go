package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// NewRouter mounts the API. limiter may be nil, in which case an in-process
// limiter with the configured per-minute budget is used.
func NewRouter(app *handlers.App, limiter middleware.Limiter) http.Handler {
	if limiter == nil {
		limiter = middleware.NewMemoryLimiter(app.Config.RateLimitPerMin, time.Minute)
	}
	rateLimit := middleware.RateLimit(limiter, app.Logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.I18N("en"),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	// Platforms redirect the browser here without our bearer token; the user
	// comes from the signed cookie set at start.
	r.With(rateLimit).Get("/v1/oauth/{platform}/callback", app.OAuthCallback)

	if app.Files != nil {
		r.Handle("/v1/files/*", http.StripPrefix("/v1/files/", app.Files))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSupabase(app.Config.SupabaseJWTSecret), rateLimit)

		r.Get("/v1/oauth/{platform}/start", app.OAuthStart)

		r.Route("/v1/social", func(r chi.Router) {
			r.Get("/accounts", app.SocialAccounts)
			r.Post("/tiktok/share", app.ShareTikTok)
			r.Post("/instagram/share", app.ShareInstagram)
			r.Delete("/{platform}", app.SocialDisconnect)
		})

		r.Post("/v1/videos", app.VideosGenerate)

		r.Route("/v1/jobs/{id}", func(r chi.Router) {
			r.Get("/", app.JobStatus)
			r.Delete("/", app.CancelJob)
			r.Get("/events", app.JobEvents)
		})

		r.Post("/v1/websites", app.WebsitesGenerate)
		r.Get("/v1/websites/{id}", app.WebsiteGet)
		r.Get("/v1/websites/{id}/export", app.WebsiteExport)

		r.Route("/v1/realtime", func(r chi.Router) {
			r.Post("/session", app.RealtimeSession)
			r.Post("/sdp", app.RealtimeSDP)
			r.Get("/ws", app.RealtimeWS)
		})

		r.Get("/v1/catalog/search", app.CatalogSearch)

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", app.CartGet)
			r.Put("/", app.CartReplace)
			r.Post("/items", app.CartAdd)
			r.Delete("/items/{itemID}", app.CartRemove)
			r.Post("/checkout", app.CartCheckout)
		})
	})

	return r
}
