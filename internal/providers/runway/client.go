// Package runway turns a still image into a short clip with Runway's
// image-to-video task API.
package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/poller"
	"studio/internal/providers"
)

const (
	defaultBaseURL = "https://api.dev.runwayml.com/v1"
	apiVersion     = "2024-11-06"
	defaultModel   = "gen3a_turbo"
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Now        func() time.Time
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// ImageToVideoRequest animates PromptImage (an https or data URL).
type ImageToVideoRequest struct {
	OwnerID     string
	PromptImage string
	PromptText  string
	Duration    int
	Ratio       string
}

type task struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Progress    *float64 `json:"progress"`
	Output      []string `json:"output"`
	Failure     string   `json:"failure"`
	FailureCode string   `json:"failureCode"`
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
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     infra.NopLogger(opts.Logger),
		now:        now,
	}
}

// Submit creates an image_to_video task.
func (c *Client) Submit(ctx context.Context, req ImageToVideoRequest) (domain.Job, error) {
	if strings.TrimSpace(req.PromptImage) == "" {
		return domain.Job{}, fmt.Errorf("runway: prompt image is required")
	}
	duration := req.Duration
	if duration != 10 {
		duration = 5
	}
	ratio := req.Ratio
	if ratio == "" {
		ratio = "768:1280"
	}
	payload := map[string]any{
		"model":       c.model,
		"promptImage": req.PromptImage,
		"duration":    duration,
		"ratio":       ratio,
	}
	if text := strings.TrimSpace(req.PromptText); text != "" {
		payload["promptText"] = text
	}

	var t task
	if err := c.do(ctx, http.MethodPost, "/image_to_video", payload, &t); err != nil {
		return domain.Job{}, err
	}
	if t.ID == "" {
		return domain.Job{}, fmt.Errorf("runway: task response has no id")
	}
	c.logger.Info().Str("task_id", t.ID).Str("model", c.model).Msg("runway: task submitted")
	return poller.NewJob(t.ID, domain.JobKindVideoRender, poller.ProviderRunway, req.OwnerID, c.now()), nil
}

// Status fetches the task and maps it into a JobStatus.
func (c *Client) Status(ctx context.Context, taskID string) (domain.JobStatus, error) {
	var t task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &t); err != nil {
		return domain.JobStatus{}, err
	}
	return mapTask(t), nil
}

func mapTask(t task) domain.JobStatus {
	switch strings.ToUpper(t.Status) {
	case "SUCCEEDED":
		var out string
		if len(t.Output) > 0 {
			out = t.Output[0]
		}
		return domain.Succeeded(out)
	case "FAILED", "CANCELLED":
		msg := t.Failure
		if msg == "" && t.FailureCode != "" {
			msg = t.FailureCode
		}
		return domain.Failed(msg)
	default:
		return domain.Pending(ProgressPercent(t.Progress))
	}
}

// ProgressPercent converts Runway's 0..1 fraction into a percentage.
func ProgressPercent(p *float64) int {
	if p == nil {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(1, *p)) * 100))
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.apiKey == "" {
		return domain.MissingConfig("RUNWAY_API_KEY")
	}
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("runway: marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("runway: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Runway-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return providers.DecodeJSON("runway", resp, out)
}
