package social

import (
	"context"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/tiktok"
)

// RefreshWindow is how close to expiry a TikTok token gets refreshed on use.
const RefreshWindow = 5 * time.Minute

// TokenSource hands out usable tokens, refreshing TikTok ones that are about
// to expire and writing the result back.
type TokenSource struct {
	repo   domain.SocialTokenRepository
	tiktok *tiktok.Client
	now    func() time.Time
	logger *infra.Logger
}

func NewTokenSource(repo domain.SocialTokenRepository, tt *tiktok.Client, logger *infra.Logger) *TokenSource {
	return &TokenSource{repo: repo, tiktok: tt, now: time.Now, logger: infra.NopLogger(logger)}
}

// Valid loads the user's token for platform and refreshes it when needed.
func (s *TokenSource) Valid(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialToken, error) {
	tok, err := s.repo.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if !tok.ExpiresWithin(s.now(), RefreshWindow) {
		return tok, nil
	}
	if platform != domain.PlatformTikTok || tok.RefreshToken == "" {
		if tok.ExpiresWithin(s.now(), 0) {
			return nil, fmt.Errorf("%w: %s token expired, reconnect the account", domain.ErrUnauthorized, platform)
		}
		return tok, nil
	}
	return s.Refresh(ctx, tok)
}

// Refresh exchanges the refresh token and stores the new token set.
func (s *TokenSource) Refresh(ctx context.Context, tok *domain.SocialToken) (*domain.SocialToken, error) {
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s token has no refresh token", domain.ErrUnauthorized, tok.Platform)
	}
	fresh, err := s.tiktok.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", tok.UserID).Msg("social: token refresh failed")
		return nil, err
	}
	next := *tok
	next.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		next.RefreshToken = fresh.RefreshToken
	}
	next.ExpiresAt = fresh.ExpiresAt(s.now())
	if fresh.OpenID != "" {
		next.PlatformUserID = fresh.OpenID
	}
	if err := s.repo.Upsert(ctx, &next); err != nil {
		return nil, fmt.Errorf("store refreshed token: %w", err)
	}
	s.logger.Info().Str("user_id", tok.UserID).Str("platform", string(tok.Platform)).Msg("social: token refreshed")
	return &next, nil
}

// RefreshExpiring claims TikTok tokens expiring inside window and refreshes
// them one by one. A failed refresh is logged and skipped.
func (s *TokenSource) RefreshExpiring(ctx context.Context, window time.Duration, limit int) (refreshed, failed int, err error) {
	toks, err := s.repo.ClaimExpiring(ctx, domain.PlatformTikTok, window, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("claim expiring tokens: %w", err)
	}
	for i := range toks {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if _, err := s.Refresh(ctx, &toks[i]); err != nil {
			s.logger.Warn().Err(err).Str("user_id", toks[i].UserID).Msg("social: token refresh failed")
			failed++
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}
