package social

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"studio/internal/domain"
	"studio/internal/providers/instagram"
	"studio/internal/providers/tiktok"
)

func redirectFor(p domain.Platform) (string, error) {
	return "https://app.example.com/v1/oauth/" + string(p) + "/callback", nil
}

func countingClient(calls *atomic.Int32, fn roundTripFunc) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		if fn == nil {
			return jsonResponse(http.StatusOK, `{}`), nil
		}
		return fn(req)
	})}
}

func TestCompleteRejectsStateMismatchBeforeAnyExchange(t *testing.T) {
	var calls atomic.Int32
	httpClient := countingClient(&calls, nil)
	svc := NewOAuthService(OAuthOptions{
		TikTok:      tiktok.NewClient(tiktok.Options{ClientKey: "k", ClientSecret: "s", HTTPClient: httpClient}),
		Instagram:   instagram.NewClient(instagram.Options{AppID: "a", AppSecret: "s", HTTPClient: httpClient}),
		Tokens:      newMemRepo(),
		RedirectURL: redirectFor,
	})

	cases := []struct {
		name     string
		platform domain.Platform
		cb       Callback
	}{
		{"tiktok mismatch", domain.PlatformTikTok, Callback{Code: "c", State: "aaa", CookieState: "bbb", Verifier: "v"}},
		{"tiktok missing cookie", domain.PlatformTikTok, Callback{Code: "c", State: "aaa", Verifier: "v"}},
		{"instagram missing state", domain.PlatformInstagram, Callback{Code: "c", CookieState: "aaa"}},
		{"instagram mismatch", domain.PlatformInstagram, Callback{Code: "c", State: "aaa", CookieState: "aab"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Complete(context.Background(), tc.platform, "u1", tc.cb)
			if !errors.Is(err, domain.ErrInvalidState) {
				t.Fatalf("err = %v, want ErrInvalidState", err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Fatalf("made %d HTTP calls, want 0", calls.Load())
	}
}

func TestBeginTikTokSetsStateAndPKCECookies(t *testing.T) {
	svc := NewOAuthService(OAuthOptions{
		TikTok:        tiktok.NewClient(tiktok.Options{ClientKey: "ck", ClientSecret: "cs"}),
		Tokens:        newMemRepo(),
		RedirectURL:   redirectFor,
		SecureCookies: true,
	})
	auth, err := svc.Begin(domain.PlatformTikTok, "u1")
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	cookies := map[string]*http.Cookie{}
	for _, c := range auth.Cookies {
		cookies[c.Name] = c
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 600 {
			t.Fatalf("cookie %s = %+v", c.Name, c)
		}
	}
	state, verifier := cookies[CookieTikTokState], cookies[CookieTikTokVerifier]
	if state == nil || verifier == nil || cookies[CookieOAuthUser] == nil {
		t.Fatalf("cookies = %v", cookies)
	}
	if len(state.Value) != 32 {
		t.Fatalf("state %q is not 16 hex-encoded bytes", state.Value)
	}
	if len(verifier.Value) != 43 {
		t.Fatalf("verifier length = %d, want 43", len(verifier.Value))
	}

	u, err := url.Parse(auth.URL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != state.Value || q.Get("code_challenge") != oauth2.S256ChallengeFromVerifier(verifier.Value) || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("query = %v", q)
	}

	user, err := svc.UserFromCookie(cookies[CookieOAuthUser].Value)
	if err != nil || user != "u1" {
		t.Fatalf("user = %q err = %v", user, err)
	}
	if _, err := svc.UserFromCookie("u2." + strings.SplitN(cookies[CookieOAuthUser].Value, ".", 2)[1]); err == nil {
		t.Fatal("tampered user cookie accepted")
	}
}

func TestCompleteTikTokExchangesWithCookieVerifier(t *testing.T) {
	var calls atomic.Int32
	var verifier string
	httpClient := countingClient(&calls, func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/v2/oauth/token/":
			_ = req.ParseForm()
			if req.PostForm.Get("code_verifier") != verifier || req.PostForm.Get("code") != "c1" || req.PostForm.Get("client_key") != "ck" {
				t.Errorf("token form = %v", req.PostForm)
			}
			if req.PostForm.Get("redirect_uri") != "https://app.example.com/v1/oauth/tiktok/callback" {
				t.Errorf("redirect_uri = %q", req.PostForm.Get("redirect_uri"))
			}
			return jsonResponse(http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":86400,"open_id":"open-1"}`), nil
		case "/v2/user/info/":
			if req.Header.Get("Authorization") != "Bearer at" {
				t.Errorf("authorization = %q", req.Header.Get("Authorization"))
			}
			return jsonResponse(http.StatusOK, `{"data":{"user":{"open_id":"open-1","display_name":"Kopi Shop"}},"error":{"code":"ok"}}`), nil
		}
		t.Errorf("unexpected request %s", req.URL.Path)
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	repo := newMemRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewOAuthService(OAuthOptions{
		TikTok:      tiktok.NewClient(tiktok.Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: httpClient}),
		Tokens:      repo,
		RedirectURL: redirectFor,
		Now:         func() time.Time { return now },
	})
	auth, err := svc.Begin(domain.PlatformTikTok, "u1")
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	var state string
	for _, c := range auth.Cookies {
		switch c.Name {
		case CookieTikTokState:
			state = c.Value
		case CookieTikTokVerifier:
			verifier = c.Value
		}
	}

	tok, err := svc.Complete(context.Background(), domain.PlatformTikTok, "u1", Callback{Code: "c1", State: state, CookieState: state, Verifier: verifier})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	stored, _ := repo.Get(context.Background(), "u1", domain.PlatformTikTok)
	if tok.AccessToken != "at" || stored.RefreshToken != "rt" || stored.PlatformUserID != "open-1" || stored.Username != "Kopi Shop" {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expires at = %v", stored.ExpiresAt)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteInstagramStoresPageToken(t *testing.T) {
	var calls atomic.Int32
	httpClient := countingClient(&calls, func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/oauth/access_token"):
			_ = req.ParseForm()
			if req.PostForm.Get("code") != "c1" || req.PostForm.Get("client_secret") != "s" {
				t.Fatalf("code exchange form = %v", req.PostForm)
			}
			return jsonResponse(http.StatusOK, `{"access_token":"short","token_type":"bearer","expires_in":3600}`), nil
		case strings.HasSuffix(req.URL.Path, "/oauth/access_token"):
			if req.URL.Query().Get("fb_exchange_token") != "short" {
				t.Fatalf("long-lived exchange query = %v", req.URL.Query())
			}
			return jsonResponse(http.StatusOK, `{"access_token":"long","expires_in":5184000}`), nil
		case strings.HasSuffix(req.URL.Path, "/me/accounts"):
			return jsonResponse(http.StatusOK, `{"data":[{"id":"pg0","name":"Blog","access_token":"pt0"},{"id":"pg1","name":"Shop","access_token":"page-token","instagram_business_account":{"id":"ig-1","username":"kopi.shop"}}]}`), nil
		}
		t.Fatalf("unexpected request %s", req.URL)
		return nil, nil
	})
	repo := newMemRepo()
	svc := NewOAuthService(OAuthOptions{
		Instagram:   instagram.NewClient(instagram.Options{AppID: "a", AppSecret: "s", HTTPClient: httpClient}),
		Tokens:      repo,
		RedirectURL: redirectFor,
	})

	tok, err := svc.Complete(context.Background(), domain.PlatformInstagram, "u1", Callback{Code: "c1", State: "st", CookieState: "st"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	stored, _ := repo.Get(context.Background(), "u1", domain.PlatformInstagram)
	if tok.AccessToken != "page-token" || stored.PlatformUserID != "ig-1" || stored.Username != "kopi.shop" || stored.ExpiresAt != nil {
		t.Fatalf("stored = %+v", stored)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDisconnectRemovesToken(t *testing.T) {
	repo := newMemRepo(domain.SocialToken{UserID: "u1", Platform: domain.PlatformTikTok, AccessToken: "at"})
	svc := NewOAuthService(OAuthOptions{Tokens: repo, RedirectURL: redirectFor})
	if err := svc.Disconnect(context.Background(), domain.PlatformTikTok, "u1"); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if _, err := repo.Get(context.Background(), "u1", domain.PlatformTikTok); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
