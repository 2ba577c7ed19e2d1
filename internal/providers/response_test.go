package providers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"studio/internal/domain"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestStatusErrorKeepsProviderMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
		code string
	}{
		{"nested", `{"error":{"code":"access_token_invalid","message":"The access token is invalid"}}`, "The access token is invalid", "access_token_invalid"},
		{"graph", `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`, "Invalid OAuth access token.", "190"},
		{"oauth", `{"error":"invalid_grant","error_description":"Authorization code expired"}`, "Authorization code expired", "invalid_grant"},
		{"flat", `{"message":"Rate limit exceeded"}`, "Rate limit exceeded", ""},
		{"stability", `{"name":"bad_request","errors":["image: width must be 768"]}`, "image: width must be 768", "bad_request"},
		{"text", `upstream unavailable`, "upstream unavailable", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := StatusError("tiktok", response(http.StatusBadRequest, tc.body))
			var perr *domain.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %T, want *domain.ProviderError", err)
			}
			if perr.Message != tc.msg || perr.Code != tc.code {
				t.Fatalf("message = %q code = %q, want %q %q", perr.Message, perr.Code, tc.msg, tc.code)
			}
			if !errors.Is(err, domain.ErrProviderFailure) {
				t.Fatal("provider error does not unwrap to ErrProviderFailure")
			}
		})
	}
}

func TestStatusErrorFallsBackToStatusText(t *testing.T) {
	err := StatusError("runway", response(http.StatusBadGateway, ""))
	if !strings.Contains(err.Error(), "status 502: Bad Gateway") {
		t.Fatalf("err = %q", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		ID string `json:"id"`
	}
	if err := DecodeJSON("creatomate", response(http.StatusOK, `{"id":"r1"}`), &out); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if out.ID != "r1" {
		t.Fatalf("id = %q", out.ID)
	}
	if err := DecodeJSON("creatomate", response(http.StatusOK, `{"id":`), &out); err == nil {
		t.Fatal("DecodeJSON accepted a malformed body")
	}
}

func TestTokenErrorMapsRetrieveError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{
			"oauth body",
			&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}, ErrorCode: "invalid_grant", ErrorDescription: "refresh token expired"},
			http.StatusBadRequest, "invalid_grant", "refresh token expired",
		},
		{
			"error on 200",
			&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusOK}, ErrorCode: "invalid_grant"},
			http.StatusBadRequest, "invalid_grant", "",
		},
		{
			"graph body",
			&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}, Body: []byte(`{"error":{"message":"Invalid verification code format.","type":"OAuthException","code":100}}`)},
			http.StatusUnauthorized, "100", "Invalid verification code format.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var perr *domain.ProviderError
			if err := TokenError("tiktok", tc.err); !errors.As(err, &perr) {
				t.Fatalf("err = %T, want *domain.ProviderError", err)
			}
			if perr.Status != tc.status || perr.Code != tc.code || perr.Message != tc.msg {
				t.Fatalf("got %d %q %q, want %d %q %q", perr.Status, perr.Code, perr.Message, tc.status, tc.code, tc.msg)
			}
		})
	}
}

func TestTokenErrorWrapsTransportFailure(t *testing.T) {
	boom := errors.New("connection refused")
	err := TokenError("instagram", boom)
	var perr *domain.ProviderError
	if errors.As(err, &perr) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
