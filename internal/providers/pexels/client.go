// Package pexels searches stock photos used to illustrate generated websites.
package pexels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers"
)

const defaultBaseURL = "https://api.pexels.com/v1"

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Photo is a search hit reduced to what a page needs.
type Photo struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Alt          string `json:"alt"`
	Photographer string `json:"photographer"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type searchResponse struct {
	Photos []struct {
		ID           int64  `json:"id"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          struct {
			Large2x   string `json:"large2x"`
			Large     string `json:"large"`
			Landscape string `json:"landscape"`
			Original  string `json:"original"`
		} `json:"src"`
	} `json:"photos"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     infra.NopLogger(opts.Logger),
	}
}

// Search returns up to perPage landscape-friendly photos for query.
func (c *Client) Search(ctx context.Context, query string, perPage int) ([]Photo, error) {
	if c.apiKey == "" {
		return nil, domain.MissingConfig("PEXELS_API_KEY")
	}
	if perPage <= 0 || perPage > 80 {
		perPage = 5
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pexels: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels: search: %w", err)
	}
	defer resp.Body.Close()

	var out searchResponse
	if err := providers.DecodeJSON("pexels", resp, &out); err != nil {
		return nil, err
	}
	photos := make([]Photo, 0, len(out.Photos))
	for _, p := range out.Photos {
		src := p.Src.Large2x
		if src == "" {
			src = p.Src.Large
		}
		if src == "" {
			src = p.Src.Original
		}
		photos = append(photos, Photo{ID: p.ID, URL: src, Alt: p.Alt, Photographer: p.Photographer, Width: p.Width, Height: p.Height})
	}
	c.logger.Debug().Str("query", query).Int("hits", len(photos)).Msg("pexels: search")
	return photos, nil
}
