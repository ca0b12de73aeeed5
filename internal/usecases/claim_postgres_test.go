package usecases

import (
	"context"
	"os"
	"testing"

	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The SQLite store runs a single connection, so its claim race never contends
// on the row. This runs the same race on Postgres with a real pool.
func TestConcurrentClaimOnPostgres(t *testing.T) {
	dsn := os.Getenv("LIVEASSIST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LIVEASSIST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	log := zerolog.Nop()

	pg, err := infrastructure.NewPostgresClient(ctx, dsn, log)
	require.NoError(t, err)
	defer pg.Close()

	tenantID := "race-" + uuid.NewString()[:8]
	require.NoError(t, repository.NewTenantRepository(pg.Pool).EnsureTenant(ctx, tenantID, tenantID))

	store := repository.NewStore(pg.Pool)
	events := &recordingNotifier{}
	messages := NewMessageLog(store, events, log)
	lifecycle := NewLifecycleManager(store, messages, events, log)
	claims := NewClaimCoordinator(store, nil, events, log)

	creator := entities.Caller{TenantID: tenantID, AgentID: "creator", Role: entities.RoleAgent}
	for round := 0; round < 5; round++ {
		req, err := lifecycle.Create(ctx, creator, entities.NewRequest{
			Name:   "Ana",
			Phone:  "51999000111",
			Reason: "Billing issue",
		})
		require.NoError(t, err)

		winner := raceClaim(t, claims, tenantID, req.ID, 50)

		final, err := store.GetRequest(ctx, tenantID, req.ID)
		require.NoError(t, err)
		require.NoError(t, final.CheckInvariants())
		assert.Equal(t, entities.StatusInProgress, final.Status)
		assert.True(t, final.IsAssignedTo(winner))
	}
	assert.Equal(t, 5, events.count(entities.EventRequestClaimed))
}
