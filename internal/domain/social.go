package domain

import (
	"strings"
	"time"
)

// Platform identifies a social network the user can connect.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// ParsePlatform normalises free-form input into a supported platform.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformTikTok:
		return PlatformTikTok, true
	case PlatformInstagram:
		return PlatformInstagram, true
	default:
		return "", false
	}
}

// SocialToken is one row of social_media_tokens, keyed by (user_id, platform).
type SocialToken struct {
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PlatformUserID string     `json:"platform_user_id"`
	Username       string     `json:"username,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires inside the window.
// Tokens without an expiry never do.
func (t *SocialToken) ExpiresWithin(now time.Time, window time.Duration) bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return !now.Add(window).Before(*t.ExpiresAt)
}

// ShareRequest carries what a publish flow needs.
type ShareRequest struct {
	VideoURL string `json:"videoUrl"`
	Caption  string `json:"caption"`
	AsDraft  bool   `json:"asDraft"`
}

// ShareResult is returned to the caller once a publish reaches a terminal state.
type ShareResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
	PostURL string `json:"postUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}
