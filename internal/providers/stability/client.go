// Package stability generates short clips with Stability AI's asynchronous
// image-to-video endpoint.
package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/poller"
	"studio/internal/providers"
)

const defaultBaseURL = "https://api.stability.ai/v2beta"

// InProgressPercent is reported while Stability answers 202.
const InProgressPercent = 50

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

// ImageToVideoRequest carries the source image bytes. Stability only accepts
// 1024x576, 576x1024 or 768x768 inputs.
type ImageToVideoRequest struct {
	OwnerID        string
	Image          []byte
	Filename       string
	Seed           int
	CfgScale       float64
	MotionBucketID int
}

// Result is one poll of a generation. Video holds the MP4 once finished.
type Result struct {
	Status domain.JobStatus
	Video  []byte
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
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

// Submit uploads the image and starts a generation.
func (c *Client) Submit(ctx context.Context, req ImageToVideoRequest) (domain.Job, error) {
	if c.apiKey == "" {
		return domain.Job{}, domain.MissingConfig("STABILITY_API_KEY")
	}
	if len(req.Image) == 0 {
		return domain.Job{}, fmt.Errorf("stability: image is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	filename := req.Filename
	if filename == "" {
		filename = "image.png"
	}
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return domain.Job{}, fmt.Errorf("stability: build form: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return domain.Job{}, fmt.Errorf("stability: build form: %w", err)
	}
	_ = mw.WriteField("seed", strconv.Itoa(req.Seed))
	cfg := req.CfgScale
	if cfg <= 0 {
		cfg = 1.8
	}
	_ = mw.WriteField("cfg_scale", strconv.FormatFloat(cfg, 'f', -1, 64))
	motion := req.MotionBucketID
	if motion <= 0 {
		motion = 127
	}
	_ = mw.WriteField("motion_bucket_id", strconv.Itoa(motion))
	if err := mw.Close(); err != nil {
		return domain.Job{}, fmt.Errorf("stability: build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image-to-video", &buf)
	if err != nil {
		return domain.Job{}, fmt.Errorf("stability: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Job{}, fmt.Errorf("stability: submit: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := providers.DecodeJSON("stability", resp, &out); err != nil {
		return domain.Job{}, err
	}
	if out.ID == "" {
		return domain.Job{}, fmt.Errorf("stability: response has no generation id")
	}
	c.logger.Info().Str("generation_id", out.ID).Msg("stability: generation submitted")
	return poller.NewJob(out.ID, domain.JobKindVideoRender, poller.ProviderStability, req.OwnerID, c.now()), nil
}

// Result polls the generation. 202 means still running.
func (c *Client) Result(ctx context.Context, generationID string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, domain.MissingConfig("STABILITY_API_KEY")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/image-to-video/result/"+url.PathEscape(generationID), nil)
	if err != nil {
		return Result{}, fmt.Errorf("stability: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("stability: fetch result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{Status: domain.Pending(InProgressPercent)}, nil
	}

	var out struct {
		Video        string `json:"video"`
		FinishReason string `json:"finish_reason"`
	}
	if err := providers.DecodeJSON("stability", resp, &out); err != nil {
		return Result{}, err
	}
	switch strings.ToUpper(out.FinishReason) {
	case "SUCCESS", "":
		video, err := base64.StdEncoding.DecodeString(out.Video)
		if err != nil || len(video) == 0 {
			return Result{Status: domain.Failed("stability returned no video")}, nil
		}
		return Result{Status: domain.Succeeded(""), Video: video}, nil
	case "CONTENT_FILTERED":
		return Result{Status: domain.Failed("the output was blocked by the content filter")}, nil
	default:
		return Result{Status: domain.Failed(strings.ToLower(out.FinishReason))}, nil
	}
}
