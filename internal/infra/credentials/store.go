// Package credentials keeps provider API keys in the integration_tokens table
// so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderCreatomate = "creatomate"
	ProviderRunway     = "runway"
	ProviderStability  = "stability"
	ProviderPexels     = "pexels"
)

// EnvNames maps each stored provider to the environment variable that
// overrides it.
var EnvNames = map[string]string{
	ProviderGemini:     "GEMINI_API_KEY",
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderCreatomate: "CREATOMATE_API_KEY",
	ProviderRunway:     "RUNWAY_API_KEY",
	ProviderStability:  "STABILITY_API_KEY",
	ProviderPexels:     "PEXELS_API_KEY",
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none was stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Set stores key for provider, replacing any previous value.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	if _, ok := EnvNames[provider]; !ok {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, map[string]any{"rotated_at": time.Now().UTC().Format(time.RFC3339)})
}

// Resolve prefers the configured environment value and falls back to the
// stored key. A key found in neither place is a configuration error naming the
// environment variable.
func (s *Store) Resolve(ctx context.Context, cfg *infra.Config, provider string) (string, error) {
	name, ok := EnvNames[provider]
	if !ok {
		return "", fmt.Errorf("unsupported provider %q", provider)
	}
	if v, err := cfg.Secret(name); err == nil {
		return v, nil
	}
	if s == nil || s.sql == nil {
		return "", domain.MissingConfig(name)
	}
	token, err := s.Token(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("load %s key: %w", provider, err)
	}
	if token == "" {
		return "", domain.MissingConfig(name)
	}
	return token, nil
}

// ResolveAll resolves every known provider, leaving missing ones empty so the
// client that needs them reports the missing variable at first use.
func (s *Store) ResolveAll(ctx context.Context, cfg *infra.Config, logger *infra.Logger) map[string]string {
	logger = infra.NopLogger(logger)
	out := make(map[string]string, len(EnvNames))
	for provider := range EnvNames {
		key, err := s.Resolve(ctx, cfg, provider)
		if err != nil {
			logger.Debug().Err(err).Str("provider", provider).Msg("credentials: key unavailable")
			continue
		}
		out[provider] = key
	}
	return out
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// Entry describes a stored key without revealing it.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

// List returns the providers that have a stored key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
