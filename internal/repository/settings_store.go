package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetProviderSettings fetches the keyed singleton configuration for a payment
// provider. A missing or disabled row both surface to the caller as a
// not-configured provider.
func (r *Repository) GetProviderSettings(ctx context.Context, provider string) (*ProviderSettings, error) {
	query := `SELECT provider, enabled, mode, api_key, client_id, client_secret, webhook_secret, updated_at
	          FROM provider_settings WHERE provider = $1`

	var s ProviderSettings
	err := r.db.QueryRowContext(ctx, query, provider).Scan(
		&s.Provider,
		&s.Enabled,
		&s.Mode,
		&s.APIKey,
		&s.ClientID,
		&s.ClientSecret,
		&s.WebhookSecret,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query provider settings: %w", err)
	}
	return &s, nil
}
