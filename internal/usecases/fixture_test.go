package usecases

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/repository/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testTenant = "acme"

type recordingNotifier struct {
	mu     sync.Mutex
	events []entities.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev entities.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) count(typ entities.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	store     *sqlite.Store
	events    *recordingNotifier
	messages  *MessageLog
	lifecycle *LifecycleManager
	claims    *ClaimCoordinator
	queue     *QueueView
	gateway   *SyncGateway
	auth      *AuthUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "liveassist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureTenant(context.Background(), testTenant, "Acme"))

	log := zerolog.Nop()
	events := &recordingNotifier{}
	messages := NewMessageLog(store, events, log)
	lifecycle := NewLifecycleManager(store, messages, events, log)
	return &fixture{
		store:     store,
		events:    events,
		messages:  messages,
		lifecycle: lifecycle,
		claims:    NewClaimCoordinator(store, store, events, log),
		queue:     NewQueueView(store),
		gateway:   NewSyncGateway(store, store, lifecycle, messages, time.Second),
		auth:      NewAuthUsecase(store, store, "test-secret", time.Hour),
	}
}

func agentCaller(id string) entities.Caller {
	return entities.Caller{TenantID: testTenant, AgentID: id, Role: entities.RoleAgent}
}

func supervisorCaller(id string) entities.Caller {
	return entities.Caller{TenantID: testTenant, AgentID: id, Role: entities.RoleSupervisor}
}

func (f *fixture) addAgent(t *testing.T, id string, active bool) {
	t.Helper()
	require.NoError(t, f.store.CreateAgent(context.Background(), &entities.Agent{
		ID:           id,
		TenantID:     testTenant,
		Username:     "user-" + id,
		PasswordHash: "x",
		Role:         entities.RoleAgent,
		IsActive:     active,
		CreatedAt:    time.Now().UTC(),
	}))
}

func (f *fixture) create(t *testing.T, name string) *entities.AssistanceRequest {
	t.Helper()
	req, err := f.lifecycle.Create(context.Background(), agentCaller("creator"), entities.NewRequest{
		Name:   name,
		Phone:  "51999000111",
		Reason: "Billing issue",
	})
	require.NoError(t, err)
	return req
}

// requireInvariants reloads the request and checks its ownership fields.
func (f *fixture) requireInvariants(t *testing.T, id string) *entities.AssistanceRequest {
	t.Helper()
	req, err := f.store.GetRequest(context.Background(), testTenant, id)
	require.NoError(t, err)
	require.NoError(t, req.CheckInvariants())
	return req
}
