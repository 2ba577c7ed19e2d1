// Package tiktok wraps the TikTok Login Kit and Content Posting APIs.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers"
)

const (
	defaultAuthURL = "https://www.tiktok.com/v2/auth/authorize/"
	defaultAPIURL  = "https://open.tiktokapis.com"

	// Scopes requested at authorization time.
	Scopes = "user.info.basic,video.publish,video.upload"
)

type Options struct {
	ClientKey    string
	ClientSecret string
	AuthURL      string
	APIURL       string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

type Client struct {
	clientKey    string
	clientSecret string
	authURL      string
	apiURL       string
	httpClient   *http.Client
	logger       *infra.Logger
}

// Token is the OAuth token set returned by the token endpoint.
type Token struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int
	RefreshExpiresIn int
	OpenID           string
	Scope            string
}

// ExpiresAt converts ExpiresIn into an absolute time.
func (t Token) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// User is the subset of /v2/user/info/ the service stores.
type User struct {
	OpenID      string `json:"open_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// PublishStatus is one answer of /v2/post/publish/status/fetch/.
type PublishStatus struct {
	Status     string        `json:"status"`
	FailReason string        `json:"fail_reason"`
	ItemID     string        `json:"item_id"`
	PostIDs    []json.Number `json:"publicaly_available_post_id"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error apiError        `json:"error"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	authURL := opts.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		clientKey:    strings.TrimSpace(opts.ClientKey),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		authURL:      authURL,
		apiURL:       apiURL,
		httpClient:   client,
		logger:       infra.NopLogger(opts.Logger),
	}
}

func (c *Client) credentials() error {
	if c.clientKey == "" {
		return domain.MissingConfig("TIKTOK_API_KEY")
	}
	if c.clientSecret == "" {
		return domain.MissingConfig("TIKTOK_API_SECRET")
	}
	return nil
}

// AuthorizeURL builds the consent URL with a PKCE S256 challenge derived from
// verifier.
func (c *Client) AuthorizeURL(redirectURI, state, verifier string) (string, error) {
	if c.clientKey == "" {
		return "", domain.MissingConfig("TIKTOK_API_KEY")
	}
	return c.oauthConfig(redirectURI).AuthCodeURL(state,
		oauth2.SetAuthURLParam("client_key", c.clientKey),
		oauth2.SetAuthURLParam("scope", Scopes),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, verifier string) (Token, error) {
	if err := c.credentials(); err != nil {
		return Token{}, err
	}
	tok, err := c.oauthConfig(redirectURI).Exchange(c.tokenContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Token{}, providers.TokenError("tiktok", err)
	}
	return tokenFrom(tok), nil
}

// Refresh obtains a new access token from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if err := c.credentials(); err != nil {
		return Token{}, err
	}
	src := c.oauthConfig("").TokenSource(c.tokenContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, providers.TokenError("tiktok", err)
	}
	return tokenFrom(tok), nil
}

// Scopes are sent comma separated through the scope parameter, so the config
// carries none.
func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientKey,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authURL,
			TokenURL:  c.apiURL + "/v2/oauth/token/",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) tokenContext(ctx context.Context) context.Context {
	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	return providers.OAuthContext(ctx, &http.Client{
		Transport: clientKeyTransport{next: next},
		Timeout:   c.httpClient.Timeout,
	})
}

func tokenFrom(t *oauth2.Token) Token {
	openID, _ := t.Extra("open_id").(string)
	scope, _ := t.Extra("scope").(string)
	refreshIn, _ := t.Extra("refresh_expires_in").(float64)
	return Token{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		ExpiresIn:        int(t.ExpiresIn),
		RefreshExpiresIn: int(refreshIn),
		OpenID:           openID,
		Scope:            scope,
	}
}

// clientKeyTransport copies client_id into the client_key form field TikTok's
// token endpoint reads.
type clientKeyTransport struct {
	next http.RoundTripper
}

func (t clientKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Method != http.MethodPost {
		return t.next.RoundTrip(req)
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("tiktok: read token request: %w", err)
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("tiktok: parse token request: %w", err)
	}
	if form.Get("client_key") == "" {
		form.Set("client_key", form.Get("client_id"))
	}
	body := form.Encode()
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(strings.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = nil
	return t.next.RoundTrip(out)
}

// UserInfo fetches the authorised user's profile.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (User, error) {
	var data struct {
		User User `json:"user"`
	}
	endpoint := "/v2/user/info/?fields=" + url.QueryEscape("open_id,union_id,avatar_url,display_name,username")
	if err := c.call(ctx, http.MethodGet, endpoint, accessToken, nil, &data); err != nil {
		return User{}, err
	}
	return data.User, nil
}

// InitPublish starts a pull-from-URL upload. Drafts go to the creator's inbox.
func (c *Client) InitPublish(ctx context.Context, accessToken, videoURL, caption string, asDraft bool) (string, error) {
	source := map[string]any{"source": "PULL_FROM_URL", "video_url": videoURL}
	path := "/v2/post/publish/video/init/"
	payload := map[string]any{"source_info": source}
	if asDraft {
		path = "/v2/post/publish/inbox/video/init/"
	} else {
		payload["post_info"] = map[string]any{
			"title":           caption,
			"privacy_level":   "SELF_ONLY",
			"disable_comment": false,
			"disable_duet":    false,
			"disable_stitch":  false,
		}
	}

	var data struct {
		PublishID string `json:"publish_id"`
	}
	if err := c.call(ctx, http.MethodPost, path, accessToken, payload, &data); err != nil {
		return "", err
	}
	if data.PublishID == "" {
		return "", fmt.Errorf("tiktok: init response has no publish_id")
	}
	c.logger.Info().Str("publish_id", data.PublishID).Bool("draft", asDraft).Msg("tiktok: publish initialised")
	return data.PublishID, nil
}

// FetchStatus returns the raw publish status.
func (c *Client) FetchStatus(ctx context.Context, accessToken, publishID string) (PublishStatus, error) {
	var data PublishStatus
	err := c.call(ctx, http.MethodPost, "/v2/post/publish/status/fetch/", accessToken, map[string]any{"publish_id": publishID}, &data)
	return data, err
}

func (c *Client) call(ctx context.Context, method, path, accessToken string, payload, out any) error {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("tiktok: marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("tiktok: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tiktok: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := providers.DecodeJSON("tiktok", resp, &env); err != nil {
		return err
	}
	if env.Error.Code != "" && env.Error.Code != "ok" {
		status := resp.StatusCode
		if env.Error.Code == "access_token_invalid" || env.Error.Code == "scope_not_authorized" {
			status = http.StatusUnauthorized
		}
		return &domain.ProviderError{Provider: "tiktok", Status: status, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("tiktok: decode data: %w", err)
		}
	}
	return nil
}
