package usecases

import (
	"context"
	"errors"
	"testing"

	"liveassist/internal/entities"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSupervisorAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.EnsureSupervisor(ctx, "globex", "root", "password123"))
	require.NoError(t, f.auth.EnsureSupervisor(ctx, "globex", "root", "password123"))

	tenant, err := f.store.GetTenant(ctx, "globex")
	require.NoError(t, err)
	require.NotNil(t, tenant)

	signed, err := f.auth.Login(ctx, "globex", "root", "password123")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "globex", claims["tenant_id"])
	assert.Equal(t, entities.RoleSupervisor, claims["role"])
	assert.NotEmpty(t, claims["sub"])

	_, err = f.auth.Login(ctx, "globex", "root", "wrong-password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = f.auth.Login(ctx, testTenant, "root", "password123")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestRegisterRequiresSupervisor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, agentCaller("A1"), "maria", "password123", "")
	assert.True(t, errors.Is(err, entities.ErrForbidden))

	agent, err := f.auth.Register(ctx, supervisorCaller("S1"), "maria", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAgent, agent.Role)
	assert.Equal(t, testTenant, agent.TenantID)
	assert.NotEqual(t, "password123", agent.PasswordHash)

	_, err = f.auth.Register(ctx, supervisorCaller("S1"), "maria", "password123", "")
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))
	_, err = f.auth.Register(ctx, supervisorCaller("S1"), "pedro", "short", "")
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))
	_, err = f.auth.Register(ctx, supervisorCaller("S1"), "pedro", "password123", "owner")
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))
}

func TestDeactivatedAgentCannotLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	agent, err := f.auth.Register(ctx, supervisorCaller("S1"), "maria", "password123", entities.RoleAgent)
	require.NoError(t, err)

	assert.True(t, errors.Is(f.auth.SetAgentActive(ctx, agentCaller("A1"), agent.ID, false), entities.ErrForbidden))
	require.NoError(t, f.auth.SetAgentActive(ctx, supervisorCaller("S1"), agent.ID, false))

	_, err = f.auth.Login(ctx, testTenant, "maria", "password123")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	agents, err := f.auth.ListAgents(ctx, supervisorCaller("S1"))
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].IsActive)
}
