package stability

import (
	"context"
	"encoding/base64"
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

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestSubmitSendsMultipartImage(t *testing.T) {
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if req.FormValue("motion_bucket_id") != "127" {
			t.Fatalf("motion_bucket_id = %q", req.FormValue("motion_bucket_id"))
		}
		if _, _, err := req.FormFile("image"); err != nil {
			t.Fatalf("image part missing: %v", err)
		}
		return reply(http.StatusOK, `{"id":"gen-1"}`), nil
	})}})

	job, err := client.Submit(context.Background(), ImageToVideoRequest{Image: []byte{0x89, 0x50}})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if job.ID != "gen-1" || job.Provider != "stability" {
		t.Fatalf("job = %+v", job)
	}
}

func TestResultInProgressMapsToFifty(t *testing.T) {
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusAccepted, `{"id":"gen-1","status":"in-progress"}`), nil
	})}})
	res, err := client.Result(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if res.Status.State != domain.JobStateProcessing || res.Status.Progress != 50 {
		t.Fatalf("status = %+v", res.Status)
	}
}

func TestResultFinishedCarriesVideo(t *testing.T) {
	video := base64.StdEncoding.EncodeToString([]byte("mp4-bytes"))
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"video":"`+video+`","finish_reason":"SUCCESS","seed":1}`), nil
	})}})
	res, err := client.Result(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if res.Status.State != domain.JobStateSucceeded || string(res.Video) != "mp4-bytes" {
		t.Fatalf("result = %+v", res)
	}
}

func TestResultContentFiltered(t *testing.T) {
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"video":"","finish_reason":"CONTENT_FILTERED"}`), nil
	})}})
	res, err := client.Result(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if res.Status.State != domain.JobStateFailed {
		t.Fatalf("status = %+v", res.Status)
	}
}

func TestResultNotFoundIsProviderError(t *testing.T) {
	client := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusNotFound, `{"name":"not_found","errors":["generation gen-x not found"]}`), nil
	})}})
	_, err := client.Result(context.Background(), "gen-x")
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusNotFound || perr.Message != "generation gen-x not found" {
		t.Fatalf("err = %v", err)
	}
}
