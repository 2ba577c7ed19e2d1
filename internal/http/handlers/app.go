package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studio/internal/cart"
	"studio/internal/catalog"
	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/middleware"
	"studio/internal/realtime"
	"studio/internal/social"
	"studio/internal/video"
	"studio/internal/website"
)

const maxJSONBody = 1 << 20

// App holds the services behind the HTTP API.
type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Tracker   *jobs.Tracker
	OAuth     *social.OAuthService
	Publisher *social.Publisher
	Video     *video.Service
	Websites  *website.Generator
	Catalog   *catalog.Catalog
	Cart      *cart.Service
	Realtime  realtime.SDPClient
	// RealtimeDialer opens the server-side realtime socket for /v1/realtime/ws.
	RealtimeDialer realtime.Dialer
	// Files serves locally stored objects when the filesystem driver is used.
	Files http.Handler
	// RemoteEvents follows jobs polled by other instances.
	RemoteEvents interface {
		Subscribe(ctx context.Context, jobID string) <-chan domain.Snapshot
	}
	// Checks are run by the health endpoint, keyed by dependency name.
	Checks   map[string]func(context.Context) error
	Upgrader websocket.Upgrader
	// Streams is canceled when the server starts shutting down. Websocket
	// handlers outlive their request context and watch this instead.
	Streams context.Context
}

// streamContext detaches a hijacked connection from its request while still
// ending it on shutdown.
func (a *App) streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	if a.Streams == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(a.Streams, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (a *App) shuttingDown() bool {
	return a.Streams != nil && a.Streams.Err() != nil
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	middleware.WriteError(w, r, status, code, msg)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// decode reads a JSON body. It answers 400 itself and reports false when the
// body is unusable.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
