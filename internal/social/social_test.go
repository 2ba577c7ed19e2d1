package social

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type memRepo struct {
	mu      sync.Mutex
	tokens  map[string]domain.SocialToken
	touched []string
}

func newMemRepo(tokens ...domain.SocialToken) *memRepo {
	r := &memRepo{tokens: make(map[string]domain.SocialToken)}
	for _, t := range tokens {
		r.tokens[t.UserID+"/"+string(t.Platform)] = t
	}
	return r
}

func (r *memRepo) Get(_ context.Context, userID string, platform domain.Platform) (*domain.SocialToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[userID+"/"+string(platform)]
	if !ok {
		return nil, domain.ErrNotConnected
	}
	return &t, nil
}

func (r *memRepo) Upsert(_ context.Context, t *domain.SocialToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.UserID+"/"+string(t.Platform)] = *t
	return nil
}

func (r *memRepo) Delete(_ context.Context, userID string, platform domain.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID+"/"+string(platform))
	return nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string) ([]domain.SocialToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SocialToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) TouchUsage(_ context.Context, userID string, platform domain.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, userID+"/"+string(platform))
	return nil
}

func (r *memRepo) ClaimExpiring(_ context.Context, platform domain.Platform, window time.Duration, limit int) ([]domain.SocialToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SocialToken
	now := time.Now()
	for _, t := range r.tokens {
		if t.Platform == platform && t.RefreshToken != "" && t.ExpiresWithin(now, window) && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func expiresIn(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}
