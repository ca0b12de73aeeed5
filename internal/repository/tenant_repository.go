package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"liveassist/internal/entities"

	"github.com/jackc/pgx/v5"
)

var tenantSlugChars = regexp.MustCompile("[^a-z0-9_-]+")

// SanitizeTenantID normalizes a tenant slug as it appears in public URLs.
func SanitizeTenantID(id string) string {
	return tenantSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(id)), "-")
}

type TenantRepository struct {
	db DB
}

func NewTenantRepository(db DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetTenant returns nil, nil when the tenant does not exist.
func (t *TenantRepository) GetTenant(ctx context.Context, id string) (*entities.Tenant, error) {
	var tenant entities.Tenant
	err := t.db.QueryRow(ctx,
		"SELECT id, name, created_at FROM tenants WHERE id = $1",
		id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &tenant, nil
}

// EnsureTenant creates the tenant row if missing. The name of an existing tenant is kept.
func (t *TenantRepository) EnsureTenant(ctx context.Context, id, name string) error {
	id = SanitizeTenantID(id)
	if id == "" {
		return entities.NewValidationError("tenant_id", "tenant id is required")
	}
	_, err := t.db.Exec(ctx,
		"INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		id, name)
	if err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}
