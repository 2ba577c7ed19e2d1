package instagram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestBusinessAccountPicksFirstLinkedPage(t *testing.T) {
	client := NewClient(Options{AppID: "id", AppSecret: "secret", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v19.0/me/accounts" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		return reply(http.StatusOK, `{"data":[
			{"id":"p0","name":"Blog","access_token":"t0"},
			{"id":"p1","name":"Shop","access_token":"t1","instagram_business_account":{"id":"ig1","username":"shop"}}
		]}`), nil
	})}})

	acc, err := client.BusinessAccount(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("BusinessAccount returned error: %v", err)
	}
	if acc.UserID != "ig1" || acc.PageToken != "t1" || acc.Username != "shop" {
		t.Fatalf("account = %+v", acc)
	}
}

func TestBusinessAccountMissing(t *testing.T) {
	client := NewClient(Options{AppID: "id", AppSecret: "secret", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"data":[{"id":"p0","name":"Blog","access_token":"t0"}]}`), nil
	})}})
	_, err := client.BusinessAccount(context.Background(), "user-token")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestCreateReelContainerForm(t *testing.T) {
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		_ = req.ParseForm()
		if req.URL.Path != "/v19.0/ig1/media" || req.PostForm.Get("media_type") != "REELS" || req.PostForm.Get("video_url") != "https://cdn.example.com/v.mp4" {
			t.Fatalf("request = %s %v", req.URL.Path, req.PostForm)
		}
		return reply(http.StatusOK, `{"id":"c1"}`), nil
	})}})
	id, err := client.CreateReelContainer(context.Background(), "t", "ig1", "https://cdn.example.com/v.mp4", "caption")
	if err != nil || id != "c1" {
		t.Fatalf("id = %q err = %v", id, err)
	}
}

func TestGraphErrorKeepsMessage(t *testing.T) {
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusBadRequest, `{"error":{"message":"The video file you selected is in a format that we don't support.","type":"OAuthException","code":352}}`), nil
	})}})
	_, err := client.CreateReelContainer(context.Background(), "t", "ig1", "https://x/v.avi", "")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || !strings.Contains(perr.Message, "format that we don't support") {
		t.Fatalf("err = %v", err)
	}
}

func TestExchangeCodeRequiresSecret(t *testing.T) {
	client := NewClient(Options{AppID: "id"})
	_, err := client.ExchangeCode(context.Background(), "code", "https://app/cb")
	if !errors.Is(err, domain.ErrMissingConfig) || !strings.Contains(err.Error(), "INSTAGRAM_APP_SECRET") {
		t.Fatalf("err = %v", err)
	}
}

func TestAuthorizeURLRequestsPublishScopes(t *testing.T) {
	client := NewClient(Options{AppID: "id", AppSecret: "secret"})
	raw, err := client.AuthorizeURL("https://app/cb", "st")
	if err != nil {
		t.Fatalf("AuthorizeURL returned error: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if u.Host != "www.facebook.com" || q.Get("client_id") != "id" || q.Get("redirect_uri") != "https://app/cb" ||
		q.Get("state") != "st" || q.Get("scope") != Scopes || q.Get("response_type") != "code" {
		t.Fatalf("url = %s", raw)
	}
}

func TestExchangeCodePostsCredentials(t *testing.T) {
	client := NewClient(Options{AppID: "id", AppSecret: "secret", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/v19.0/oauth/access_token" {
			t.Fatalf("request = %s %s", req.Method, req.URL.Path)
		}
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		f := req.PostForm
		if f.Get("code") != "c1" || f.Get("client_id") != "id" || f.Get("client_secret") != "secret" ||
			f.Get("redirect_uri") != "https://app/cb" || f.Get("grant_type") != "authorization_code" {
			t.Fatalf("form = %v", f)
		}
		return reply(http.StatusOK, `{"access_token":"short","token_type":"bearer","expires_in":3600}`), nil
	})}})
	tok, err := client.ExchangeCode(context.Background(), "c1", "https://app/cb")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}
	if tok.AccessToken != "short" || tok.TokenType != "bearer" || tok.ExpiresIn != 3600 {
		t.Fatalf("token = %+v", tok)
	}
}

func TestExchangeCodeKeepsGraphMessage(t *testing.T) {
	client := NewClient(Options{AppID: "id", AppSecret: "secret", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusBadRequest, `{"error":{"message":"This authorization code has been used.","type":"OAuthException","code":100}}`), nil
	})}})
	_, err := client.ExchangeCode(context.Background(), "c1", "https://app/cb")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusBadRequest || perr.Message != "This authorization code has been used." {
		t.Fatalf("err = %v", err)
	}
}

func TestMapContainerStatus(t *testing.T) {
	if st := MapContainerStatus("FINISHED", ""); st.State != domain.JobStateSucceeded {
		t.Fatalf("FINISHED = %+v", st)
	}
	if st := MapContainerStatus("ERROR", ""); st.State != domain.JobStateFailed || st.ErrorMessage == "" {
		t.Fatalf("ERROR = %+v", st)
	}
	if st := MapContainerStatus("EXPIRED", ""); st.State != domain.JobStateFailed {
		t.Fatalf("EXPIRED = %+v", st)
	}
	if st := MapContainerStatus("IN_PROGRESS", ""); st.IsTerminal() {
		t.Fatalf("IN_PROGRESS = %+v", st)
	}
}
