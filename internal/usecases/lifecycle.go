package usecases

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/rs/zerolog"
)

const (
	maxNameLen    = 120
	maxPhoneLen   = 32
	maxReasonLen  = 2000
	maxSummaryLen = 20000
	maxNoteLen    = 4000
)

// LifecycleManager owns the request state machine:
//
//	PENDING     --claim-->    IN_PROGRESS   (ClaimCoordinator)
//	PENDING     --cancel-->   CANCELLED
//	IN_PROGRESS --reassign--> IN_PROGRESS   (ClaimCoordinator)
//	IN_PROGRESS --resolve-->  RESOLVED
//	IN_PROGRESS --cancel-->   CANCELLED
//	RESOLVED    --reopen-->   PENDING       (supervisor)
type LifecycleManager struct {
	store    interfaces.RequestStore
	messages *MessageLog
	events   publisher
	log      zerolog.Logger
	now      Clock
}

func NewLifecycleManager(store interfaces.RequestStore, messages *MessageLog, notifier interfaces.Notifier, log zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		store:    store,
		messages: messages,
		events:   publisher{notifier: notifier, log: log},
		log:      log,
		now:      systemClock,
	}
}

func requiredField(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", entities.NewValidationError(field, field+" is required")
	}
	if utf8.RuneCountInString(value) > max {
		return "", entities.NewValidationError(field, fmt.Sprintf("%s exceeds %d characters", field, max))
	}
	return value, nil
}

func optionalField(field, value string, max int) (*string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(value) > max {
		return nil, entities.NewValidationError(field, fmt.Sprintf("%s exceeds %d characters", field, max))
	}
	return &value, nil
}

// Create validates the fields and persists a new PENDING request.
func (m *LifecycleManager) Create(ctx context.Context, caller entities.Caller, in entities.NewRequest) (*entities.AssistanceRequest, error) {
	return m.create(ctx, caller, in, "")
}

func (m *LifecycleManager) create(ctx context.Context, caller entities.Caller, in entities.NewRequest, tokenHash string) (*entities.AssistanceRequest, error) {
	name, err := requiredField("name", in.Name, maxNameLen)
	if err != nil {
		return nil, err
	}
	phone, err := requiredField("phone", in.Phone, maxPhoneLen)
	if err != nil {
		return nil, err
	}
	reason, err := requiredField("reason", in.Reason, maxReasonLen)
	if err != nil {
		return nil, err
	}
	summary, err := optionalField("conversation_summary", in.ConversationSummary, maxSummaryLen)
	if err != nil {
		return nil, err
	}
	channel, err := entities.ParseChannel(in.OriginChannel)
	if err != nil {
		return nil, err
	}
	priority, err := entities.ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}

	now := m.now()
	req := &entities.AssistanceRequest{
		ID:                  newID(),
		TenantID:            caller.TenantID,
		Name:                name,
		Phone:               phone,
		Reason:              reason,
		OriginChannel:       channel,
		Status:              entities.StatusPending,
		Priority:            priority,
		ConversationSummary: summary,
		TrackingTokenHash:   tokenHash,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := m.store.InsertRequest(ctx, req); err != nil {
		return nil, err
	}

	m.log.Info().Str("tenant_id", req.TenantID).Str("request_id", req.ID).
		Str("channel", string(req.OriginChannel)).Msg("request created")
	m.events.requestEvent(ctx, entities.EventRequestCreated, caller, req, now)
	return req, nil
}

// ChangePriority is a no-op when the priority does not change.
func (m *LifecycleManager) ChangePriority(ctx context.Context, caller entities.Caller, id, raw string) (*entities.AssistanceRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, entities.NewValidationError("priority", "priority is required")
	}
	priority, err := entities.ParsePriority(raw)
	if err != nil {
		return nil, err
	}

	cur, err := m.store.GetRequest(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	if cur.Status.IsTerminal() {
		return nil, entities.NewInvalidTransitionError(cur.Status, "change priority of")
	}
	if cur.Priority == priority {
		return cur, nil
	}

	now := m.now()
	updated, err := m.store.UpdatePriority(ctx, caller.TenantID, id, priority, now)
	if notApplied(err) {
		// Closed between the read and the write.
		if cur, err = m.store.GetRequest(ctx, caller.TenantID, id); err != nil {
			return nil, err
		}
		return nil, entities.NewInvalidTransitionError(cur.Status, "change priority of")
	}
	if err != nil {
		return nil, err
	}

	m.events.requestEvent(ctx, entities.EventPriorityChanged, caller, updated, now)
	return updated, nil
}

// SetInternalNote replaces the agent-only note; blank clears it.
func (m *LifecycleManager) SetInternalNote(ctx context.Context, caller entities.Caller, id, text string) (*entities.AssistanceRequest, error) {
	note, err := optionalField("internal_note", text, maxNoteLen)
	if err != nil {
		return nil, err
	}
	updated, err := m.store.UpdateInternalNote(ctx, caller.TenantID, id, note, m.now())
	if notApplied(err) {
		return nil, entities.NewNotFoundError("request")
	}
	return updated, err
}

// Resolve closes an IN_PROGRESS request. Resolving a RESOLVED request returns it unchanged.
func (m *LifecycleManager) Resolve(ctx context.Context, caller entities.Caller, id string, note *string) (*entities.AssistanceRequest, error) {
	var stored *string
	if note != nil {
		var err error
		if stored, err = optionalField("internal_note", *note, maxNoteLen); err != nil {
			return nil, err
		}
	}
	return m.close(ctx, caller, id, entities.StatusResolved, []entities.RequestStatus{entities.StatusInProgress}, stored, "resolve")
}

// Cancel closes a PENDING or IN_PROGRESS request. Cancelling a CANCELLED request returns it unchanged.
func (m *LifecycleManager) Cancel(ctx context.Context, caller entities.Caller, id string) (*entities.AssistanceRequest, error) {
	return m.close(ctx, caller, id, entities.StatusCancelled, openStatuses, nil, "cancel")
}

func (m *LifecycleManager) close(ctx context.Context, caller entities.Caller, id string, to entities.RequestStatus, from []entities.RequestStatus, note *string, action string) (*entities.AssistanceRequest, error) {
	now := m.now()
	closed, err := m.store.CloseRequest(ctx, caller.TenantID, id, to, from, note, now)
	if notApplied(err) {
		cur, err := m.store.GetRequest(ctx, caller.TenantID, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == to {
			return cur, nil
		}
		return nil, entities.NewInvalidTransitionError(cur.Status, action)
	}
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("tenant_id", closed.TenantID).Str("request_id", closed.ID).
		Str("status", string(closed.Status)).Str("actor", caller.Actor()).Msg("request closed")

	if m.messages != nil {
		body := fmt.Sprintf("Request %s by %s.", strings.ToLower(string(to)), closedBy(caller))
		if _, err := m.messages.Append(ctx, caller, id, entities.SenderSystem, body); err != nil {
			m.log.Warn().Err(err).Str("request_id", id).Msg("closure entry not recorded")
		}
	}

	event := entities.EventRequestResolved
	if to == entities.StatusCancelled {
		event = entities.EventRequestCancelled
	}
	m.events.requestEvent(ctx, event, caller, closed, now)
	return closed, nil
}

// Reopen moves a RESOLVED request back to PENDING and clears its owner.
// CANCELLED is final.
func (m *LifecycleManager) Reopen(ctx context.Context, caller entities.Caller, id string) (*entities.AssistanceRequest, error) {
	if !caller.IsSupervisor() {
		return nil, entities.NewForbiddenError("reopen")
	}
	now := m.now()
	reopened, err := m.store.ReopenRequest(ctx, caller.TenantID, id, now)
	if notApplied(err) {
		cur, err := m.store.GetRequest(ctx, caller.TenantID, id)
		if err != nil {
			return nil, err
		}
		return nil, entities.NewInvalidTransitionError(cur.Status, "reopen")
	}
	if err != nil {
		return nil, err
	}

	m.events.requestEvent(ctx, entities.EventRequestReopened, caller, reopened, now)
	return reopened, nil
}

// closedBy names the closing party by role only. The entry is shown to
// customers, who must not learn agent ids.
func closedBy(caller entities.Caller) string {
	switch {
	case caller.IsCustomer():
		return "the customer"
	case caller.IsSupervisor():
		return "a supervisor"
	}
	return "the agent"
}
