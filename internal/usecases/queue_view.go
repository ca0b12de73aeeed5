package usecases

import (
	"context"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"
)

// QueueView is the read-only projection agents poll.
type QueueView struct {
	reader interfaces.RequestReader
}

func NewQueueView(reader interfaces.RequestReader) *QueueView {
	return &QueueView{reader: reader}
}

// OpenRequests lists PENDING then IN_PROGRESS, priority-major and oldest first within a priority.
func (v *QueueView) OpenRequests(ctx context.Context, caller entities.Caller, limit int) ([]entities.AssistanceRequest, error) {
	return v.reader.ListRequests(ctx, caller.TenantID, entities.RequestFilter{
		Statuses: openStatuses,
		Order:    entities.OrderQueue,
		Limit:    clampLimit(limit, DefaultViewLimit),
	})
}

// Mine lists requests owned by the caller, IN_PROGRESS first then most recently updated.
func (v *QueueView) Mine(ctx context.Context, caller entities.Caller, limit int) ([]entities.AssistanceRequest, error) {
	if caller.AgentID == "" {
		return []entities.AssistanceRequest{}, nil
	}
	return v.reader.ListRequests(ctx, caller.TenantID, entities.RequestFilter{
		AssignedTo: caller.AgentID,
		Order:      entities.OrderRecent,
		Limit:      clampLimit(limit, DefaultViewLimit),
	})
}

func (v *QueueView) ByStatus(ctx context.Context, caller entities.Caller, raw string, limit int) ([]entities.AssistanceRequest, error) {
	status, err := entities.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return v.reader.ListRequests(ctx, caller.TenantID, entities.RequestFilter{
		Statuses: []entities.RequestStatus{status},
		Order:    entities.OrderQueue,
		Limit:    clampLimit(limit, DefaultViewLimit),
	})
}

func (v *QueueView) PendingCount(ctx context.Context, caller entities.Caller) (int, error) {
	return v.reader.CountRequests(ctx, caller.TenantID, entities.StatusPending)
}

func (v *QueueView) Get(ctx context.Context, caller entities.Caller, id string) (*entities.AssistanceRequest, error) {
	return v.reader.GetRequest(ctx, caller.TenantID, id)
}
