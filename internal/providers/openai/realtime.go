// Package openai provisions OpenAI Realtime sessions for the voice assistant.
package openai

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

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Voice      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Tool declares a function the model may call.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SessionRequest configures a realtime session.
type SessionRequest struct {
	Instructions string
	Tools        []Tool
	Modalities   []string
}

// Session is the ephemeral session handed to a client. ClientSecret is only
// valid for about a minute and only for opening the connection.
type Session struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	ClientSecret string    `json:"client_secret"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-realtime-preview"
	}
	voice := opts.Voice
	if voice == "" {
		voice = "alloy"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		voice:      voice,
		httpClient: client,
		logger:     infra.NopLogger(opts.Logger),
	}
}

func (c *Client) Model() string { return c.model }

// CreateSession mints an ephemeral key with tools and instructions attached.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if c.apiKey == "" {
		return Session{}, domain.MissingConfig("OPENAI_API_KEY")
	}
	modalities := req.Modalities
	if len(modalities) == 0 {
		modalities = []string{"audio", "text"}
	}
	payload := map[string]any{
		"model":                     c.model,
		"voice":                     c.voice,
		"modalities":                modalities,
		"instructions":              req.Instructions,
		"tools":                     req.Tools,
		"tool_choice":               "auto",
		"input_audio_transcription": map[string]any{"model": "whisper-1"},
		"turn_detection":            map[string]any{"type": "server_vad"},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("openai: marshal session: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/realtime/sessions", bytes.NewReader(raw))
	if err != nil {
		return Session{}, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("openai: create session: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		ID           string `json:"id"`
		Model        string `json:"model"`
		ClientSecret struct {
			Value     string `json:"value"`
			ExpiresAt int64  `json:"expires_at"`
		} `json:"client_secret"`
	}
	if err := providers.DecodeJSON("openai", resp, &out); err != nil {
		return Session{}, err
	}
	if out.ClientSecret.Value == "" {
		return Session{}, &domain.ProviderError{Provider: "openai", Status: http.StatusBadGateway, Message: "session has no client secret"}
	}
	c.logger.Info().Str("session_id", out.ID).Msg("openai: realtime session created")
	return Session{
		ID:           out.ID,
		Model:        out.Model,
		ClientSecret: out.ClientSecret.Value,
		ExpiresAt:    time.Unix(out.ClientSecret.ExpiresAt, 0).UTC(),
	}, nil
}

// ExchangeSDP forwards a browser's SDP offer using an ephemeral key and
// returns OpenAI's SDP answer.
func (c *Client) ExchangeSDP(ctx context.Context, ephemeralKey, offer string) (string, error) {
	if strings.TrimSpace(ephemeralKey) == "" {
		return "", fmt.Errorf("%w: ephemeral key is required", domain.ErrUnauthorized)
	}
	endpoint := c.baseURL + "/realtime?model=" + url.QueryEscape(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ephemeralKey)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: sdp exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", providers.StatusError("openai", resp)
	}
	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read sdp answer: %w", err)
	}
	return string(answer), nil
}

// RealtimeURL is the websocket endpoint for server-side connections.
func (c *Client) RealtimeURL() string {
	u := strings.Replace(c.baseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime?model=" + url.QueryEscape(c.model)
}
