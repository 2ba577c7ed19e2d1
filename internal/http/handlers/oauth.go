package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/social"
)

func (a *App) platformParam(w http.ResponseWriter, r *http.Request) (domain.Platform, bool) {
	platform, ok := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		a.error(w, r, http.StatusNotFound, "not_found", "unsupported platform")
	}
	return platform, ok
}

// OAuthStart sets the state cookies and sends the browser to the consent
// screen. Clients that fetch it with ?mode=json get the URL back instead, for
// when the access token cannot ride along on a navigation.
func (a *App) OAuthStart(w http.ResponseWriter, r *http.Request) {
	platform, ok := a.platformParam(w, r)
	if !ok {
		return
	}
	auth, err := a.OAuth.Begin(platform, a.currentUserID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	for _, c := range auth.Cookies {
		http.SetCookie(w, c)
	}
	if r.URL.Query().Get("mode") == "json" {
		a.json(w, http.StatusOK, map[string]string{"url": auth.URL})
		return
	}
	http.Redirect(w, r, auth.URL, http.StatusFound)
}

// OAuthCallback finishes the flow and always redirects back to the settings
// page, with ?connected=<platform> or ?error=<code>.
func (a *App) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	platform, ok := a.platformParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	cb := social.Callback{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: firstNonEmpty(q.Get("error_description"), q.Get("error")),
	}
	if c, err := r.Cookie(social.StateCookie(platform)); err == nil {
		cb.CookieState = c.Value
	}
	if platform == domain.PlatformTikTok {
		if c, err := r.Cookie(social.CookieTikTokVerifier); err == nil {
			cb.Verifier = c.Value
		}
	}
	var userID string
	if c, err := r.Cookie(social.CookieOAuthUser); err == nil {
		userID, _ = a.OAuth.UserFromCookie(c.Value)
	}
	for _, c := range a.OAuth.ClearCookies(platform) {
		http.SetCookie(w, c)
	}

	settings := strings.TrimRight(a.Config.AppHost, "/") + "/settings"
	if _, err := a.OAuth.Complete(r.Context(), platform, userID, cb); err != nil {
		e := classify(err)
		a.Logger.Warn().Err(err).Str("platform", string(platform)).Str("code", e.code).Msg("oauth: callback rejected")
		v := url.Values{"error": {e.code}, "platform": {string(platform)}}
		http.Redirect(w, r, settings+"?"+v.Encode(), http.StatusFound)
		return
	}
	http.Redirect(w, r, settings+"?connected="+url.QueryEscape(string(platform)), http.StatusFound)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
