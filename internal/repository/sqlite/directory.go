package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/repository"
)

const agentColumns = `id, tenant_id, username, password_hash, role, is_active, created_at`

func scanAgent(row rowScanner) (*entities.Agent, error) {
	var (
		a         entities.Agent
		createdAt int64
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromNanos(createdAt)
	return &a, nil
}

func (s *Store) CreateAgent(ctx context.Context, agent *entities.Agent) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO agents (id, tenant_id, username, password_hash, role, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		agent.ID, agent.TenantID, agent.Username, agent.PasswordHash, agent.Role, agent.IsActive, toNanos(agent.CreatedAt))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgentByID(ctx context.Context, tenantID, id string) (*entities.Agent, error) {
	return scanAgent(s.db.QueryRowContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = ? AND id = ?", tenantID, id))
}

func (s *Store) GetAgentByUsername(ctx context.Context, tenantID, username string) (*entities.Agent, error) {
	return scanAgent(s.db.QueryRowContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = ? AND username = ?", tenantID, username))
}

func (s *Store) ListAgents(ctx context.Context, tenantID string) ([]entities.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = ? ORDER BY username", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := []entities.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgentStatus(ctx context.Context, tenantID, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE agents SET is_active = ? WHERE tenant_id = ? AND id = ?", active, tenantID, id)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.NewNotFoundError("agent")
	}
	return nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*entities.Tenant, error) {
	var (
		t         entities.Tenant
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM tenants WHERE id = ?", id).Scan(&t.ID, &t.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.CreatedAt = fromNanos(createdAt)
	return &t, nil
}

func (s *Store) EnsureTenant(ctx context.Context, id, name string) error {
	id = repository.SanitizeTenantID(id)
	if id == "" {
		return entities.NewValidationError("tenant_id", "tenant id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING",
		id, name, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, tenantID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM tenant_settings WHERE tenant_id = ? AND key = ?", tenantID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, tenantID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		tenantID, key, value, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (s *Store) ListSettings(ctx context.Context, tenantID string) ([]entities.TenantSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value, updated_at FROM tenant_settings WHERE tenant_id = ? ORDER BY key", tenantID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := []entities.TenantSetting{}
	for rows.Next() {
		var (
			st        entities.TenantSetting
			updatedAt int64
		)
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, err
		}
		st.UpdatedAt = fromNanos(updatedAt)
		settings = append(settings, st)
	}
	return settings, rows.Err()
}
