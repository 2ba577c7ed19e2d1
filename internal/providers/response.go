// Package providers holds the helpers shared by the third-party API clients.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"studio/internal/domain"
)

const maxErrorBody = 64 << 10

// StatusError turns a non-2xx response into a *domain.ProviderError carrying
// the provider's own message when the body has one. It consumes resp.Body.
func StatusError(provider string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, msg := extractMessage(data)
	return &domain.ProviderError{
		Provider: provider,
		Status:   resp.StatusCode,
		Code:     code,
		Message:  msg,
	}
}

// DecodeJSON checks the status and decodes a 2xx body into out.
func DecodeJSON(provider string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError(provider, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

// extractMessage understands the error shapes of the APIs this service calls:
// {"error":{"message","code"}}, {"error":{"message","type"}} (Graph/OpenAI),
// {"error":"...", "error_description":"..."} (OAuth), {"message":"..."} and
// {"name","errors":[...]} (Stability).
func extractMessage(data []byte) (string, string) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", ""
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		if len(trimmed) > 300 {
			trimmed = trimmed[:300]
		}
		return "", trimmed
	}

	switch e := body["error"].(type) {
	case map[string]any:
		msg := str(e["message"])
		code := firstNonEmpty(str(e["code"]), str(e["type"]))
		if msg != "" {
			return code, msg
		}
	case string:
		if desc := str(body["error_description"]); desc != "" {
			return e, desc
		}
		if msg := str(body["message"]); msg != "" {
			return e, msg
		}
		return "", e
	}
	if msg := str(body["message"]); msg != "" {
		return str(body["code"]), msg
	}
	if errs, ok := body["errors"].([]any); ok && len(errs) > 0 {
		return str(body["name"]), str(errs[0])
	}
	if detail := str(body["detail"]); detail != "" {
		return "", detail
	}
	return "", ""
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
