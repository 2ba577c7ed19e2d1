package domain

import (
	"context"
	"time"
)

// SocialTokenRepository persists OAuth tokens keyed by (user, platform).
// Get returns ErrNotConnected when the user never linked the platform.
type SocialTokenRepository interface {
	Get(ctx context.Context, userID string, platform Platform) (*SocialToken, error)
	Upsert(ctx context.Context, token *SocialToken) error
	Delete(ctx context.Context, userID string, platform Platform) error
	ListByUser(ctx context.Context, userID string) ([]SocialToken, error)
	TouchUsage(ctx context.Context, userID string, platform Platform) error
	// ClaimExpiring leases up to limit tokens that expire inside window.
	ClaimExpiring(ctx context.Context, platform Platform, window time.Duration, limit int) ([]SocialToken, error)
}
