package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestAuthorizeURLCarriesPKCE(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs"})
	verifier := oauth2.GenerateVerifier()
	raw, err := client.AuthorizeURL("https://app.example.com/v1/oauth/tiktok/callback", "st4te", verifier)
	if err != nil {
		t.Fatalf("AuthorizeURL returned error: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("client_key") != "ck" || q.Get("state") != "st4te" || q.Get("scope") != Scopes || q.Get("response_type") != "code" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("code_challenge") != oauth2.S256ChallengeFromVerifier(verifier) || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("challenge = %q method = %q", q.Get("code_challenge"), q.Get("code_challenge_method"))
	}
	if q.Get("code_verifier") != "" {
		t.Fatal("verifier leaked into the consent URL")
	}
}

func TestExchangeCodeSendsVerifier(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v2/oauth/token/" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		f := req.PostForm
		if f.Get("code_verifier") != "v3rifier" || f.Get("client_key") != "ck" || f.Get("client_secret") != "cs" ||
			f.Get("grant_type") != "authorization_code" || f.Get("code") != "code" || f.Get("redirect_uri") != "https://app/cb" {
			t.Fatalf("form = %v", f)
		}
		return reply(http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":86400,"refresh_expires_in":31536000,"open_id":"oid","scope":"user.info.basic"}`), nil
	})}})
	tok, err := client.ExchangeCode(context.Background(), "code", "https://app/cb", "v3rifier")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}
	want := Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 86400, RefreshExpiresIn: 31536000, OpenID: "oid", Scope: "user.info.basic"}
	if tok != want {
		t.Fatalf("token = %+v, want %+v", tok, want)
	}
}

func TestRefreshSendsClientKey(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		f := req.PostForm
		if f.Get("grant_type") != "refresh_token" || f.Get("refresh_token") != "rt" || f.Get("client_key") != "ck" || f.Get("client_secret") != "cs" {
			t.Fatalf("form = %v", f)
		}
		return reply(http.StatusOK, `{"access_token":"at2","expires_in":86400,"open_id":"oid"}`), nil
	})}})
	tok, err := client.Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if tok.AccessToken != "at2" || tok.RefreshToken != "rt" || tok.ExpiresIn != 86400 {
		t.Fatalf("token = %+v", tok)
	}
}

func TestRefreshRejectedIsProviderError(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusUnauthorized, `{"error":"invalid_grant","error_description":"refresh token revoked"}`), nil
	})}})
	_, err := client.Refresh(context.Background(), "rt")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusUnauthorized || perr.Code != "invalid_grant" || perr.Message != "refresh token revoked" {
		t.Fatalf("err = %v", err)
	}
}

func TestExchangeCodeErrorKeepsDescription(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"error":"invalid_grant","error_description":"Authorization code is expired."}`), nil
	})}})
	_, err := client.ExchangeCode(context.Background(), "code", "https://app/cb", "v")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Message != "Authorization code is expired." {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingSecretFailsAtFirstUse(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck"})
	_, err := client.Refresh(context.Background(), "rt")
	if !errors.Is(err, domain.ErrMissingConfig) || !strings.Contains(err.Error(), "TIKTOK_API_SECRET") {
		t.Fatalf("err = %v", err)
	}
}

func TestInitPublishDraftUsesInbox(t *testing.T) {
	var path string
	var payload map[string]any
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		_ = json.NewDecoder(req.Body).Decode(&payload)
		return reply(http.StatusOK, `{"data":{"publish_id":"p1"},"error":{"code":"ok","message":""}}`), nil
	})}})

	id, err := client.InitPublish(context.Background(), "at", "https://cdn.example.com/v.mp4", "hello", true)
	if err != nil {
		t.Fatalf("InitPublish returned error: %v", err)
	}
	if id != "p1" || path != "/v2/post/publish/inbox/video/init/" {
		t.Fatalf("id = %q path = %q", id, path)
	}
	if _, ok := payload["post_info"]; ok {
		t.Fatal("draft upload carried post_info")
	}
	source := payload["source_info"].(map[string]any)
	if source["source"] != "PULL_FROM_URL" {
		t.Fatalf("source_info = %v", source)
	}
}

func TestCallMapsEnvelopeError(t *testing.T) {
	client := NewClient(Options{ClientKey: "ck", ClientSecret: "cs", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"data":{},"error":{"code":"access_token_invalid","message":"The access token is invalid or not found in the request."}}`), nil
	})}})
	_, err := client.FetchStatus(context.Background(), "at", "p1")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusUnauthorized || perr.Code != "access_token_invalid" {
		t.Fatalf("err = %v", err)
	}
}

func TestMapStatus(t *testing.T) {
	st := MapStatus(PublishStatus{Status: "PUBLISH_COMPLETE", PostIDs: []json.Number{"7301"}}, "p1")
	if st.State != domain.JobStateSucceeded || st.PostID != "7301" {
		t.Fatalf("complete = %+v", st)
	}
	st = MapStatus(PublishStatus{Status: "SEND_TO_USER_INBOX"}, "p1")
	if st.State != domain.JobStateSucceeded || st.PostID != "p1" {
		t.Fatalf("inbox = %+v", st)
	}
	st = MapStatus(PublishStatus{Status: "FAILED", FailReason: "file_format_check_failed"}, "p1")
	if st.State != domain.JobStateFailed || st.ErrorMessage != "file_format_check_failed" {
		t.Fatalf("failed = %+v", st)
	}
	if st := MapStatus(PublishStatus{Status: "PROCESSING_DOWNLOAD"}, "p1"); st.IsTerminal() {
		t.Fatalf("processing reported terminal: %+v", st)
	}
	if got := PostURL("oid", "i1"); got != "https://www.tiktok.com/@oid/video/i1" {
		t.Fatalf("PostURL = %q", got)
	}
}
