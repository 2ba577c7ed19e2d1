package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if len(a.Checks) == 0 {
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(a.Checks))
	for name, check := range a.Checks {
		if err := check(ctx); err != nil {
			a.Logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			deps[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	a.json(w, code, map[string]any{"status": status, "dependencies": deps})
}
