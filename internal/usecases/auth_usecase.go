package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthUsecase struct {
	agents    interfaces.AgentRepository
	tenants   interfaces.TenantRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	now       Clock
}

func NewAuthUsecase(agents interfaces.AgentRepository, tenants interfaces.TenantRepository, secret string, ttl time.Duration) *AuthUsecase {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthUsecase{
		agents:    agents,
		tenants:   tenants,
		jwtSecret: []byte(secret),
		tokenTTL:  ttl,
		now:       systemClock,
	}
}

// Register adds an agent to the caller's tenant. Only supervisors may register.
func (uc *AuthUsecase) Register(ctx context.Context, caller entities.Caller, username, password, role string) (*entities.Agent, error) {
	if !caller.IsSupervisor() {
		return nil, entities.NewForbiddenError("register agent")
	}
	return uc.createAgent(ctx, caller.TenantID, username, password, role)
}

func (uc *AuthUsecase) createAgent(ctx context.Context, tenantID, username, password, role string) (*entities.Agent, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, entities.NewValidationError("username", "username is required")
	}
	if len(password) < 8 {
		return nil, entities.NewValidationError("password", "password must have at least 8 characters")
	}
	if role == "" {
		role = entities.RoleAgent
	}
	if role != entities.RoleAgent && role != entities.RoleSupervisor {
		return nil, entities.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	existing, err := uc.agents.GetAgentByUsername(ctx, tenantID, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, entities.NewValidationError("username", "username already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	agent := &entities.Agent{
		ID:           newID(),
		TenantID:     tenantID,
		Username:     username,
		PasswordHash: string(hashed),
		Role:         role,
		IsActive:     true,
		CreatedAt:    uc.now(),
	}
	if err := uc.agents.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Login checks credentials and issues a JWT carrying tenant_id, sub and role.
func (uc *AuthUsecase) Login(ctx context.Context, tenantID, username, password string) (string, error) {
	agent, err := uc.agents.GetAgentByUsername(ctx, tenantID, username)
	if err != nil {
		return "", err
	}
	if agent == nil || !agent.IsActive {
		return "", ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": agent.TenantID,
		"sub":       agent.ID,
		"role":      agent.Role,
		"username":  agent.Username,
		"exp":       uc.now().Add(uc.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (uc *AuthUsecase) ListAgents(ctx context.Context, caller entities.Caller) ([]entities.Agent, error) {
	return uc.agents.ListAgents(ctx, caller.TenantID)
}

func (uc *AuthUsecase) SetAgentActive(ctx context.Context, caller entities.Caller, id string, active bool) error {
	if !caller.IsSupervisor() {
		return entities.NewForbiddenError("change agent status")
	}
	return uc.agents.UpdateAgentStatus(ctx, caller.TenantID, id, active)
}

// EnsureSupervisor creates the tenant and a root supervisor if missing (called on startup).
func (uc *AuthUsecase) EnsureSupervisor(ctx context.Context, tenantID, username, password string) error {
	if err := uc.tenants.EnsureTenant(ctx, tenantID, tenantID); err != nil {
		return err
	}
	agent, err := uc.agents.GetAgentByUsername(ctx, tenantID, username)
	if err != nil {
		return err
	}
	if agent != nil {
		return nil
	}
	_, err = uc.createAgent(ctx, tenantID, username, password, entities.RoleSupervisor)
	return err
}
