package handlers

import (
	"errors"
	"net/http"

	"studio/internal/cart"
	"studio/internal/domain"
	"studio/internal/realtime"
	"studio/internal/social"
	"studio/internal/video"
	"studio/internal/website"
)

type apiError struct {
	status int
	code   string
}

// classify maps the error taxonomy onto HTTP. The first match wins, so
// specific sentinels come before the broad provider failure.
func classify(err error) apiError {
	switch {
	case errors.Is(err, domain.ErrMissingConfig):
		return apiError{http.StatusServiceUnavailable, "missing_config"}
	case errors.Is(err, domain.ErrUnauthorized):
		return apiError{http.StatusUnauthorized, "unauthorized"}
	case errors.Is(err, domain.ErrInvalidState):
		return apiError{http.StatusBadRequest, "invalid_state"}
	case errors.Is(err, domain.ErrNotFound):
		return apiError{http.StatusNotFound, "not_found"}
	case errors.Is(err, domain.ErrNotConnected):
		return apiError{http.StatusConflict, "not_connected"}
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrDuplicateJob):
		return apiError{http.StatusConflict, "conflict"}
	case errors.Is(err, website.ErrNotReady):
		return apiError{http.StatusConflict, "not_ready"}
	case errors.Is(err, domain.ErrTimeout):
		return apiError{http.StatusGatewayTimeout, "timeout"}
	case errors.Is(err, domain.ErrCanceled):
		return apiError{http.StatusRequestTimeout, "canceled"}
	case errors.Is(err, domain.ErrJobFailed):
		return apiError{http.StatusBadGateway, "job_failed"}
	case errors.Is(err, domain.ErrProviderFailure):
		return apiError{http.StatusBadGateway, "provider_error"}
	case social.IsUserError(err),
		errors.Is(err, video.ErrUnknownProvider),
		errors.Is(err, website.ErrInvalidBrief),
		errors.Is(err, realtime.ErrInvalidOffer),
		errors.Is(err, cart.ErrUnknownProduct),
		errors.Is(err, cart.ErrUnknownColor),
		errors.Is(err, cart.ErrEmptyCart):
		return apiError{http.StatusBadRequest, "bad_request"}
	}
	return apiError{http.StatusInternalServerError, "internal"}
}

// writeError renders err with the status its class maps to. Internal errors
// are logged and hidden from the caller.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	msg := err.Error()
	if e.status >= http.StatusInternalServerError {
		ev := a.Logger.Error()
		if e.status != http.StatusInternalServerError {
			ev = a.Logger.Warn()
		}
		ev.Err(err).Str("path", r.URL.Path).Str("code", e.code).Msg("request failed")
	}
	if e.status == http.StatusInternalServerError {
		msg = "internal error"
	}
	a.error(w, r, e.status, e.code, msg)
}
