package poller

import (
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// DefaultMaxAttempts applies to every kind: the slowest kind tops out at ~10 minutes.
const DefaultMaxAttempts = 30

const (
	ProviderTikTok     = "tiktok"
	ProviderInstagram  = "instagram"
	ProviderCreatomate = "creatomate"
	ProviderRunway     = "runway"
	ProviderStability  = "stability"
	ProviderGeminiSite = "gemini-site"
)

var providerIntervals = map[string]time.Duration{
	ProviderTikTok:     2 * time.Second,
	ProviderInstagram:  2 * time.Second,
	ProviderCreatomate: 3 * time.Second,
	ProviderRunway:     5 * time.Second,
	ProviderStability:  10 * time.Second,
	ProviderGeminiSite: 20 * time.Second,
}

var kindIntervals = map[domain.JobKind]time.Duration{
	domain.JobKindSocialPublish:     2 * time.Second,
	domain.JobKindVideoRender:       3 * time.Second,
	domain.JobKindWebsiteGeneration: 20 * time.Second,
}

// IntervalFor returns the fixed poll interval for a provider, falling back to the kind default.
func IntervalFor(kind domain.JobKind, provider string) time.Duration {
	if d, ok := providerIntervals[provider]; ok {
		return d
	}
	if d, ok := kindIntervals[kind]; ok {
		return d
	}
	return 5 * time.Second
}

// NewJob stamps the polling policy onto a freshly accepted job.
func NewJob(id string, kind domain.JobKind, provider, ownerID string, now time.Time) domain.Job {
	return domain.Job{
		ID:           id,
		Kind:         kind,
		Provider:     provider,
		OwnerID:      ownerID,
		SubmittedAt:  now,
		PollInterval: IntervalFor(kind, provider),
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// ForJob builds a Poller from the job's policy.
func ForJob(job domain.Job, maxConsecutiveErrors int, clock Clock, logger *infra.Logger) Poller {
	return Poller{
		Interval:             job.PollInterval,
		MaxAttempts:          job.MaxAttempts,
		MaxConsecutiveErrors: maxConsecutiveErrors,
		Clock:                clock,
		Logger:               logger,
	}
}
