package repository

import (
	"context"
	"errors"
	"fmt"

	"liveassist/internal/entities"

	"github.com/jackc/pgx/v5"
)

const agentColumns = `id, tenant_id, username, password_hash, role, is_active, created_at`

type AgentRepository struct {
	db DB
}

func NewAgentRepository(db DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func scanAgent(row pgx.Row) (*entities.Agent, error) {
	var a entities.Agent
	err := row.Scan(&a.ID, &a.TenantID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) CreateAgent(ctx context.Context, agent *entities.Agent) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO agents (id, tenant_id, username, password_hash, role, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		agent.ID, agent.TenantID, agent.Username, agent.PasswordHash, agent.Role, agent.IsActive, agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) GetAgentByID(ctx context.Context, tenantID, id string) (*entities.Agent, error) {
	return scanAgent(r.db.QueryRow(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = $1 AND id = $2",
		tenantID, id))
}

func (r *AgentRepository) GetAgentByUsername(ctx context.Context, tenantID, username string) (*entities.Agent, error) {
	return scanAgent(r.db.QueryRow(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = $1 AND username = $2",
		tenantID, username))
}

func (r *AgentRepository) ListAgents(ctx context.Context, tenantID string) ([]entities.Agent, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE tenant_id = $1 ORDER BY username",
		tenantID)
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

func (r *AgentRepository) UpdateAgentStatus(ctx context.Context, tenantID, id string, active bool) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE agents SET is_active = $3 WHERE tenant_id = $1 AND id = $2",
		tenantID, id, active)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.NewNotFoundError("agent")
	}
	return nil
}
