// Package creatomate renders scene-based promotional videos through the
// Creatomate REST API.
package creatomate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/poller"
	"studio/internal/providers"
)

const defaultBaseURL = "https://api.creatomate.com/v1"

// Options controls how the Creatomate client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Now        func() time.Time
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// Scene is one slide of the rendered video.
type Scene struct {
	Text     string  `json:"text"`
	ImageURL string  `json:"image_url,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// RenderRequest is the payload of a scene-based render.
type RenderRequest struct {
	OwnerID string
	Scenes  []Scene
	Theme   string
}

type render struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	URL          string  `json:"url"`
	ErrorMessage string  `json:"error_message"`
	Progress     float64 `json:"progress"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     infra.NopLogger(opts.Logger),
		now:        now,
	}
}

// Submit starts a render and returns the tracked job. It makes one request.
func (c *Client) Submit(ctx context.Context, req RenderRequest) (domain.Job, error) {
	if len(req.Scenes) == 0 {
		return domain.Job{}, fmt.Errorf("creatomate: at least one scene is required")
	}
	payload := map[string]any{"source": buildSource(req.Scenes, req.Theme)}

	var renders []render
	if err := c.do(ctx, http.MethodPost, "/renders", payload, &renders); err != nil {
		return domain.Job{}, err
	}
	if len(renders) == 0 || renders[0].ID == "" {
		return domain.Job{}, fmt.Errorf("creatomate: render response has no id")
	}

	c.logger.Info().Str("render_id", renders[0].ID).Int("scenes", len(req.Scenes)).Msg("creatomate: render submitted")
	return poller.NewJob(renders[0].ID, domain.JobKindVideoRender, poller.ProviderCreatomate, req.OwnerID, c.now()), nil
}

// Status fetches one render and maps it into a JobStatus.
func (c *Client) Status(ctx context.Context, renderID string) (domain.JobStatus, error) {
	var r render
	if err := c.do(ctx, http.MethodGet, "/renders/"+url.PathEscape(renderID), nil, &r); err != nil {
		return domain.JobStatus{}, err
	}
	return MapStatus(r.Status, r.URL, r.ErrorMessage), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.apiKey == "" {
		return domain.MissingConfig("CREATOMATE_API_KEY")
	}
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("creatomate: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creatomate: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("creatomate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return providers.DecodeJSON("creatomate", resp, out)
}

var themes = map[string][2]string{
	"modern":  {"#111827", "#F9FAFB"},
	"vibrant": {"#DB2777", "#FFFFFF"},
	"minimal": {"#FFFFFF", "#111827"},
	"nature":  {"#14532D", "#ECFDF5"},
}

// buildSource assembles a vertical composition with one track item per scene.
func buildSource(scenes []Scene, theme string) map[string]any {
	colors, ok := themes[strings.ToLower(strings.TrimSpace(theme))]
	if !ok {
		colors = themes["modern"]
	}
	elements := make([]map[string]any, 0, len(scenes))
	for i, s := range scenes {
		duration := s.Duration
		if duration <= 0 {
			duration = 4
		}
		children := []map[string]any{}
		if s.ImageURL != "" {
			children = append(children, map[string]any{
				"type":   "image",
				"source": s.ImageURL,
				"fit":    "cover",
				"animations": []map[string]any{{
					"type": "scale", "easing": "linear", "start_scale": "100%", "end_scale": "110%",
				}},
			})
		}
		children = append(children, map[string]any{
			"type":             "text",
			"text":             s.Text,
			"y":                "78%",
			"width":            "86%",
			"font_weight":      "700",
			"font_size":        "7 vmin",
			"fill_color":       colors[1],
			"background_color": colors[0] + "CC",
			"x_alignment":      "50%",
		})
		elements = append(elements, map[string]any{
			"name":     fmt.Sprintf("scene-%d", i+1),
			"type":     "composition",
			"track":    1,
			"duration": duration,
			"elements": children,
		})
	}
	return map[string]any{
		"output_format": "mp4",
		"width":         1080,
		"height":        1920,
		"fill_color":    colors[0],
		"elements":      elements,
		"frame_rate":    30,
	}
}
