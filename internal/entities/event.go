package entities

import "time"

type EventType string

const (
	EventRequestCreated    EventType = "request.created"
	EventRequestClaimed    EventType = "request.claimed"
	EventRequestReassigned EventType = "request.reassigned"
	EventRequestResolved   EventType = "request.resolved"
	EventRequestCancelled  EventType = "request.cancelled"
	EventRequestReopened   EventType = "request.reopened"
	EventPriorityChanged   EventType = "request.priority_changed"
	EventMessageAppended   EventType = "message.appended"
)

// Event is what the lifecycle hands to the notification collaborator.
// Request is set for request.* events, Message for message.appended.
type Event struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	TenantID  string             `json:"tenant_id"`
	RequestID string             `json:"request_id"`
	Actor     string             `json:"actor,omitempty"`
	Time      time.Time          `json:"time"`
	Request   *AssistanceRequest `json:"request,omitempty"`
	Message   *MessageEntry      `json:"message,omitempty"`
}
