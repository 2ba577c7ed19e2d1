package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// SocialTokenRepositoryPG implements domain.SocialTokenRepository on social_media_tokens.
type SocialTokenRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSocialTokenRepository creates a repository that runs audited statements through sql.
func NewSocialTokenRepository(sql infra.SQLExecutor) *SocialTokenRepositoryPG {
	return &SocialTokenRepositoryPG{sql: sql}
}

func (r *SocialTokenRepositoryPG) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialToken, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectSocialToken, userID, string(platform))
	tok, err := scanSocialToken(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotConnected, platform)
		}
		return nil, err
	}
	return tok, nil
}

func (r *SocialTokenRepositoryPG) Upsert(ctx context.Context, t *domain.SocialToken) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertSocialToken,
		t.UserID,
		string(t.Platform),
		t.AccessToken,
		t.RefreshToken,
		t.ExpiresAt,
		t.PlatformUserID,
		t.Username,
	)
	return err
}

func (r *SocialTokenRepositoryPG) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteSocialToken, userID, string(platform))
	return err
}

func (r *SocialTokenRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.SocialToken, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListSocialTokensByUser, userID)
	if err != nil {
		return nil, err
	}
	return collectSocialTokens(rows)
}

func (r *SocialTokenRepositoryPG) TouchUsage(ctx context.Context, userID string, platform domain.Platform) error {
	_, err := r.sql.Exec(ctx, sqlinline.QTouchSocialTokenUsage, userID, string(platform))
	return err
}

func (r *SocialTokenRepositoryPG) ClaimExpiring(ctx context.Context, platform domain.Platform, window time.Duration, limit int) ([]domain.SocialToken, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QWorkerClaimExpiringTokens, string(platform), int(window.Seconds()), limit)
	if err != nil {
		return nil, err
	}
	return collectSocialTokens(rows)
}

func collectSocialTokens(rows pgx.Rows) ([]domain.SocialToken, error) {
	defer rows.Close()
	var out []domain.SocialToken
	for rows.Next() {
		tok, err := scanSocialToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tok)
	}
	return out, rows.Err()
}

func scanSocialToken(row pgx.Row) (*domain.SocialToken, error) {
	var (
		t        domain.SocialToken
		platform string
	)
	if err := row.Scan(
		&t.UserID,
		&platform,
		&t.AccessToken,
		&t.RefreshToken,
		&t.ExpiresAt,
		&t.PlatformUserID,
		&t.Username,
		&t.LastUsedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Platform = domain.Platform(platform)
	return &t, nil
}

var _ domain.SocialTokenRepository = (*SocialTokenRepositoryPG)(nil)
