package interfaces

import (
	"context"
	"errors"
	"time"

	"liveassist/internal/entities"
)

// ErrNotApplied is returned by a conditional write whose guard matched no row.
// Callers re-read the request to tell NOT_FOUND from a lost race.
var ErrNotApplied = errors.New("conditional update matched no rows")

// RequestReader is the read side used by the queue view and the sync gateway.
type RequestReader interface {
	GetRequest(ctx context.Context, tenantID, id string) (*entities.AssistanceRequest, error)
	ListRequests(ctx context.Context, tenantID string, filter entities.RequestFilter) ([]entities.AssistanceRequest, error)
	CountRequests(ctx context.Context, tenantID string, status entities.RequestStatus) (int, error)
}

// RequestStore is the sole writer of request rows. Every mutation is one
// conditional statement scoped by tenant and guarded on the current status.
type RequestStore interface {
	RequestReader
	InsertRequest(ctx context.Context, r *entities.AssistanceRequest) error
	ClaimRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error)
	ReassignRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error)
	CloseRequest(ctx context.Context, tenantID, id string, to entities.RequestStatus, from []entities.RequestStatus, note *string, at time.Time) (*entities.AssistanceRequest, error)
	ReopenRequest(ctx context.Context, tenantID, id string, at time.Time) (*entities.AssistanceRequest, error)
	UpdatePriority(ctx context.Context, tenantID, id string, priority entities.Priority, at time.Time) (*entities.AssistanceRequest, error)
	UpdateInternalNote(ctx context.Context, tenantID, id string, note *string, at time.Time) (*entities.AssistanceRequest, error)
}

// MessageStore persists the append-only conversation log.
type MessageStore interface {
	// AppendMessage inserts m only while the owning request is in one of the
	// writable statuses; it fills m.Seq and m.SentAt from the stored row.
	AppendMessage(ctx context.Context, m *entities.MessageEntry, writable []entities.RequestStatus) error
	ListMessages(ctx context.Context, tenantID, requestID string, since int64, limit int) ([]entities.MessageEntry, error)
}

// SnapshotReader reads a request and its conversation from one consistent view.
type SnapshotReader interface {
	Snapshot(ctx context.Context, tenantID, requestID string, since int64, limit int) (*entities.AssistanceRequest, []entities.MessageEntry, error)
}

// Store bundles what the service needs from a storage backend.
type Store interface {
	RequestStore
	MessageStore
	SnapshotReader
}

// AgentDirectory resolves agents inside a tenant. A missing agent is (nil, nil).
type AgentDirectory interface {
	GetAgentByID(ctx context.Context, tenantID, id string) (*entities.Agent, error)
}

type AgentRepository interface {
	AgentDirectory
	CreateAgent(ctx context.Context, agent *entities.Agent) error
	GetAgentByUsername(ctx context.Context, tenantID, username string) (*entities.Agent, error)
	ListAgents(ctx context.Context, tenantID string) ([]entities.Agent, error)
	UpdateAgentStatus(ctx context.Context, tenantID, id string, active bool) error
}

type TenantRepository interface {
	GetTenant(ctx context.Context, id string) (*entities.Tenant, error)
	EnsureTenant(ctx context.Context, id, name string) error
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, tenantID, key string) (string, error)
	SetSetting(ctx context.Context, tenantID, key, value string) error
	ListSettings(ctx context.Context, tenantID string) ([]entities.TenantSetting, error)
}

// Notifier is the notification collaborator invoked after every transition.
type Notifier interface {
	Notify(ctx context.Context, event entities.Event) error
}

// Messenger replies to a remote customer on the channel they wrote from.
type Messenger interface {
	SendMessage(to, content string) error
}
