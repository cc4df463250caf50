// Package credentials keeps upstream provider API tokens in the database so
// they can be rotated without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"img2img/internal/infra"
	"img2img/internal/sqlinline"
)

const ProviderReplicate = "replicate"

var ErrEmptyToken = errors.New("credentials: token is required")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) ReplicateAPIToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderReplicate)
}

func (s *Store) SetReplicateAPIToken(ctx context.Context, token string, props map[string]any) error {
	return s.SetToken(ctx, ProviderReplicate, token, props)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, normalizeProvider(provider)).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores token for provider. props are merged into the existing
// properties document.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("credentials: encode properties: %w", err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, normalizeProvider(provider), token, raw); err != nil {
		return fmt.Errorf("credentials: store %s token: %w", provider, err)
	}
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
