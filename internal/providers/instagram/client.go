// Package instagram talks to the Facebook Graph API on behalf of an
// Instagram business account linked to a Facebook Page.
package instagram

import (
	"context"
	"fmt"
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
	defaultGraphURL  = "https://graph.facebook.com/v19.0"
	defaultDialogURL = "https://www.facebook.com/v19.0/dialog/oauth"

	Scopes = "instagram_basic,instagram_content_publish,pages_show_list,pages_read_engagement,business_management"
)

type Options struct {
	AppID      string
	AppSecret  string
	GraphURL   string
	DialogURL  string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	appID      string
	appSecret  string
	graphURL   string
	dialogURL  string
	httpClient *http.Client
	logger     *infra.Logger
}

// Token is an access token and its lifetime in seconds.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExpiresAt converts ExpiresIn into an absolute time.
func (t Token) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// Page is a Facebook Page the user manages.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Business    *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"instagram_business_account"`
}

// Account is the Instagram business account a publish targets.
type Account struct {
	UserID    string
	Username  string
	PageID    string
	PageToken string
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	graphURL := strings.TrimRight(opts.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	dialogURL := opts.DialogURL
	if dialogURL == "" {
		dialogURL = defaultDialogURL
	}
	return &Client{
		appID:      strings.TrimSpace(opts.AppID),
		appSecret:  strings.TrimSpace(opts.AppSecret),
		graphURL:   graphURL,
		dialogURL:  dialogURL,
		httpClient: client,
		logger:     infra.NopLogger(opts.Logger),
	}
}

func (c *Client) credentials() error {
	if c.appID == "" {
		return domain.MissingConfig("INSTAGRAM_APP_ID")
	}
	if c.appSecret == "" {
		return domain.MissingConfig("INSTAGRAM_APP_SECRET")
	}
	return nil
}

// AuthorizeURL builds the Facebook Login dialog URL.
func (c *Client) AuthorizeURL(redirectURI, state string) (string, error) {
	if c.appID == "" {
		return "", domain.MissingConfig("INSTAGRAM_APP_ID")
	}
	return c.oauthConfig(redirectURI).AuthCodeURL(state, oauth2.SetAuthURLParam("scope", Scopes)), nil
}

// ExchangeCode trades the code for a short-lived user token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error) {
	if err := c.credentials(); err != nil {
		return Token{}, err
	}
	tok, err := c.oauthConfig(redirectURI).Exchange(providers.OAuthContext(ctx, c.httpClient), code)
	if err != nil {
		return Token{}, providers.TokenError("instagram", err)
	}
	return Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType, ExpiresIn: int(tok.ExpiresIn)}, nil
}

// The Graph token endpoint reads the app credentials from the form.
func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.appID,
		ClientSecret: c.appSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.dialogURL,
			TokenURL:  c.graphURL + "/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// LongLived exchanges a short-lived user token for one valid about 60 days.
func (c *Client) LongLived(ctx context.Context, shortToken string) (Token, error) {
	if err := c.credentials(); err != nil {
		return Token{}, err
	}
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.appID)
	q.Set("client_secret", c.appSecret)
	q.Set("fb_exchange_token", shortToken)
	var tok Token
	if err := c.get(ctx, "/oauth/access_token", q, &tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// Pages lists the user's pages together with any linked business account.
func (c *Client) Pages(ctx context.Context, userToken string) ([]Page, error) {
	q := url.Values{}
	q.Set("fields", "id,name,access_token,instagram_business_account{id,username}")
	q.Set("access_token", userToken)
	var out struct {
		Data []Page `json:"data"`
	}
	if err := c.get(ctx, "/me/accounts", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// BusinessAccount picks the first page that has an Instagram business account.
func (c *Client) BusinessAccount(ctx context.Context, userToken string) (Account, error) {
	pages, err := c.Pages(ctx, userToken)
	if err != nil {
		return Account{}, err
	}
	for _, p := range pages {
		if p.Business != nil && p.Business.ID != "" {
			return Account{UserID: p.Business.ID, Username: p.Business.Username, PageID: p.ID, PageToken: p.AccessToken}, nil
		}
	}
	return Account{}, fmt.Errorf("%w: no Facebook Page with a linked Instagram business account", domain.ErrNotConnected)
}

// CreateReelContainer uploads a video by URL and returns the container id.
func (c *Client) CreateReelContainer(ctx context.Context, accessToken, igUserID, videoURL, caption string) (string, error) {
	form := url.Values{}
	form.Set("media_type", "REELS")
	form.Set("video_url", videoURL)
	form.Set("caption", caption)
	form.Set("access_token", accessToken)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/"+url.PathEscape(igUserID)+"/media", form, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("instagram: container response has no id")
	}
	return out.ID, nil
}

// ContainerStatus returns status_code and the human-readable status.
func (c *Client) ContainerStatus(ctx context.Context, accessToken, containerID string) (string, string, error) {
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", accessToken)
	var out struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	if err := c.get(ctx, "/"+url.PathEscape(containerID), q, &out); err != nil {
		return "", "", err
	}
	return out.StatusCode, out.Status, nil
}

// Publish makes a finished container public and returns the media id.
func (c *Client) Publish(ctx context.Context, accessToken, igUserID, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", accessToken)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/"+url.PathEscape(igUserID)+"/media_publish", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Permalink returns the public URL of a published media object.
func (c *Client) Permalink(ctx context.Context, accessToken, mediaID string) (string, error) {
	q := url.Values{}
	q.Set("fields", "permalink")
	q.Set("access_token", accessToken)
	var out struct {
		Permalink string `json:"permalink"`
	}
	if err := c.get(ctx, "/"+url.PathEscape(mediaID), q, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("instagram: create request: %w", err)
	}
	return c.send(req, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("instagram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("instagram: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	return providers.DecodeJSON("instagram", resp, out)
}
