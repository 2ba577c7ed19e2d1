package handlers

import (
	"net/http"

	"studio/internal/domain"
)

func (a *App) SocialAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.OAuth.Accounts(r.Context(), a.currentUserID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.SocialToken{}
	}
	a.json(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *App) SocialDisconnect(w http.ResponseWriter, r *http.Request) {
	platform, ok := a.platformParam(w, r)
	if !ok {
		return
	}
	if err := a.OAuth.Disconnect(r.Context(), platform, a.currentUserID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ShareTikTok(w http.ResponseWriter, r *http.Request) {
	var req domain.ShareRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.VideoURL == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "videoUrl is required")
		return
	}
	res, err := a.Publisher.ShareToTikTok(r.Context(), a.currentUserID(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) ShareInstagram(w http.ResponseWriter, r *http.Request) {
	var req domain.ShareRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.VideoURL == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "videoUrl is required")
		return
	}
	res, err := a.Publisher.ShareToInstagram(r.Context(), a.currentUserID(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
