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

const MaxMessageBody = 4000

var (
	openStatuses = []entities.RequestStatus{entities.StatusPending, entities.StatusInProgress}
	allStatuses  = []entities.RequestStatus{
		entities.StatusPending, entities.StatusInProgress, entities.StatusResolved, entities.StatusCancelled,
	}
)

// MessageLog is the append-only conversation attached to each request.
type MessageLog struct {
	store  interfaces.Store
	events publisher
	now    Clock
}

func NewMessageLog(store interfaces.Store, notifier interfaces.Notifier, log zerolog.Logger) *MessageLog {
	return &MessageLog{
		store:  store,
		events: publisher{notifier: notifier, log: log},
		now:    systemClock,
	}
}

// Append adds one entry. CUSTOMER and AGENT entries are only accepted while the
// request is open; the check and the insert happen in one storage step.
func (l *MessageLog) Append(ctx context.Context, caller entities.Caller, requestID string, sender entities.Sender, body string) (*entities.MessageEntry, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, entities.ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > MaxMessageBody {
		return nil, entities.NewValidationError("body", fmt.Sprintf("body exceeds %d characters", MaxMessageBody))
	}
	if !sender.Valid() {
		return nil, entities.NewValidationError("sender", fmt.Sprintf("unknown sender %q", sender))
	}

	m := &entities.MessageEntry{
		ID:        newID(),
		RequestID: requestID,
		TenantID:  caller.TenantID,
		Sender:    sender,
		Body:      body,
		SentAt:    l.now(),
	}
	writable := openStatuses
	switch sender {
	case entities.SenderAgent:
		if caller.AgentID == "" {
			return nil, entities.NewValidationError("agent_id", "agent entries need an agent")
		}
		agentID := caller.AgentID
		m.AgentID = &agentID
	case entities.SenderSystem:
		writable = allStatuses
	}

	if err := l.store.AppendMessage(ctx, m, writable); err != nil {
		if !notApplied(err) {
			return nil, err
		}
		cur, err := l.store.GetRequest(ctx, caller.TenantID, requestID)
		if err != nil {
			return nil, err
		}
		return nil, entities.NewRequestClosedError(cur.Status)
	}

	l.events.publish(ctx, entities.Event{
		Type:      entities.EventMessageAppended,
		TenantID:  m.TenantID,
		RequestID: m.RequestID,
		Actor:     caller.Actor(),
		Time:      m.SentAt,
		Message:   m,
	})
	return m, nil
}

// List returns entries with seq > since, oldest first. The request row and the
// page come from one snapshot so an unknown id is NOT_FOUND, not an empty page.
func (l *MessageLog) List(ctx context.Context, caller entities.Caller, requestID string, since int64, limit int) (*entities.MessagePage, error) {
	if since < 0 {
		return nil, entities.NewValidationError("since", "since must be >= 0")
	}
	_, messages, err := l.store.Snapshot(ctx, caller.TenantID, requestID, since, clampLimit(limit, DefaultMessageLimit))
	if err != nil {
		return nil, err
	}
	return newPage(messages, since), nil
}

func newPage(messages []entities.MessageEntry, since int64) *entities.MessagePage {
	next := since
	if n := len(messages); n > 0 {
		next = messages[n-1].Seq
	}
	return &entities.MessagePage{Messages: messages, NextCursor: next}
}
