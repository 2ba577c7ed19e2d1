package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestCreateSession(t *testing.T) {
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/realtime/sessions" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		var payload map[string]any
		_ = json.NewDecoder(req.Body).Decode(&payload)
		tools, _ := payload["tools"].([]any)
		if len(tools) != 1 {
			t.Fatalf("tools = %v", payload["tools"])
		}
		body := `{"id":"sess_1","model":"gpt-4o-realtime-preview","client_secret":{"value":"ek_123","expires_at":1700000000}}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
	})}})

	sess, err := client.CreateSession(context.Background(), SessionRequest{
		Instructions: "You are a shop assistant.",
		Tools:        []Tool{{Type: "function", Name: "add_to_cart", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if sess.ClientSecret != "ek_123" || sess.ExpiresAt.Unix() != 1700000000 {
		t.Fatalf("session = %+v", sess)
	}
}

func TestExchangeSDP(t *testing.T) {
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Content-Type") != "application/sdp" || req.Header.Get("Authorization") != "Bearer ek_123" {
			t.Fatalf("headers = %v", req.Header)
		}
		if req.URL.Query().Get("model") == "" {
			t.Fatal("model query missing")
		}
		offer, _ := io.ReadAll(req.Body)
		if string(offer) != "v=0 offer" {
			t.Fatalf("offer = %q", offer)
		}
		return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(strings.NewReader("v=0 answer"))}, nil
	})}})

	answer, err := client.ExchangeSDP(context.Background(), "ek_123", "v=0 offer")
	if err != nil || answer != "v=0 answer" {
		t.Fatalf("answer = %q err = %v", answer, err)
	}
}

func TestCreateSessionMissingKey(t *testing.T) {
	_, err := NewClient(Options{}).CreateSession(context.Background(), SessionRequest{})
	if !errors.Is(err, domain.ErrMissingConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestRealtimeURL(t *testing.T) {
	got := NewClient(Options{Model: "m1"}).RealtimeURL()
	if got != "wss://api.openai.com/v1/realtime?model=m1" {
		t.Fatalf("RealtimeURL = %q", got)
	}
}
