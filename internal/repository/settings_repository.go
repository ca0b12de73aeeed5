package repository

import (
	"context"
	"errors"
	"fmt"

	"liveassist/internal/entities"

	"github.com/jackc/pgx/v5"
)

type SettingsRepository struct {
	db DB
}

func NewSettingsRepository(db DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting returns a value by key, "" when unset.
func (r *SettingsRepository) GetSetting(ctx context.Context, tenantID, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		"SELECT value FROM tenant_settings WHERE tenant_id = $1 AND key = $2",
		tenantID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil // Not found is not strictly an error
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (r *SettingsRepository) SetSetting(ctx context.Context, tenantID, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, tenantID, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (r *SettingsRepository) ListSettings(ctx context.Context, tenantID string) ([]entities.TenantSetting, error) {
	rows, err := r.db.Query(ctx,
		"SELECT key, value, updated_at FROM tenant_settings WHERE tenant_id = $1 ORDER BY key",
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := []entities.TenantSetting{}
	for rows.Next() {
		var s entities.TenantSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
