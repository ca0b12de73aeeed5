package entities

import (
	"fmt"
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "PENDING"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusResolved   RequestStatus = "RESOLVED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further conversation writes are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts any casing ("pending", "In_Progress").
func ParseStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Rank orders priorities for the queue view, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

func (p Priority) Valid() bool { return p.Rank() >= 0 }

// ParsePriority returns NORMAL for an empty value.
func ParsePriority(raw string) (Priority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PriorityNormal, nil
	}
	p := Priority(strings.ToUpper(raw))
	if !p.Valid() {
		return "", NewValidationError("priority", fmt.Sprintf("unknown priority %q", raw))
	}
	return p, nil
}

type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelWeb      Channel = "WEB"
	ChannelPhone    Channel = "PHONE"
)

// ParseChannel returns WEB for an empty value.
func ParseChannel(raw string) (Channel, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ChannelWeb, nil
	}
	c := Channel(strings.ToUpper(raw))
	switch c {
	case ChannelWhatsApp, ChannelWeb, ChannelPhone:
		return c, nil
	}
	return "", NewValidationError("origin_channel", fmt.Sprintf("unknown channel %q", raw))
}

// AssistanceRequest is a customer's ask for live human help ("solicitud").
type AssistanceRequest struct {
	ID                  string        `json:"id"`
	TenantID            string        `json:"tenant_id"`
	Name                string        `json:"name"`
	Phone               string        `json:"phone"`
	Reason              string        `json:"reason"`
	OriginChannel       Channel       `json:"origin_channel"`
	Status              RequestStatus `json:"status"`
	Priority            Priority      `json:"priority"`
	AssignedTo          *string       `json:"assigned_to"`
	AssignedAt          *time.Time    `json:"assigned_at"`
	ResolvedAt          *time.Time    `json:"resolved_at"`
	InternalNote        *string       `json:"internal_note"`
	ConversationSummary *string       `json:"conversation_summary"`
	LastMessageAt       *time.Time    `json:"last_message_at"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`

	// Digest of the public tracking token; only the store and the sync gateway read it.
	TrackingTokenHash string `json:"-"`
}

// IsAssignedTo reports whether agentID currently owns the request.
func (r *AssistanceRequest) IsAssignedTo(agentID string) bool {
	return r.AssignedTo != nil && *r.AssignedTo == agentID
}

// CheckInvariants validates the ownership and closure fields against the status.
func (r *AssistanceRequest) CheckInvariants() error {
	if r.Status == StatusPending && r.AssignedTo != nil {
		return fmt.Errorf("request %s: pending with assigned_to=%s", r.ID, *r.AssignedTo)
	}
	if r.Status == StatusInProgress && r.AssignedTo == nil {
		return fmt.Errorf("request %s: in progress without owner", r.ID)
	}
	if (r.AssignedTo == nil) != (r.AssignedAt == nil) {
		return fmt.Errorf("request %s: assigned_to and assigned_at out of sync", r.ID)
	}
	if r.Status.IsTerminal() != (r.ResolvedAt != nil) {
		return fmt.Errorf("request %s: status %s with resolved_at=%v", r.ID, r.Status, r.ResolvedAt)
	}
	return nil
}

// PublicView strips agent-only fields before handing a request to customers.
func (r AssistanceRequest) PublicView() PublicRequest {
	return PublicRequest{
		ID:            r.ID,
		Name:          r.Name,
		Reason:        r.Reason,
		OriginChannel: r.OriginChannel,
		Status:        r.Status,
		Assigned:      r.AssignedTo != nil,
		ResolvedAt:    r.ResolvedAt,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type PublicRequest struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Reason        string        `json:"reason"`
	OriginChannel Channel       `json:"origin_channel"`
	Status        RequestStatus `json:"status"`
	Assigned      bool          `json:"assigned"`
	ResolvedAt    *time.Time    `json:"resolved_at"`
	LastMessageAt *time.Time    `json:"last_message_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewRequest carries the caller-supplied fields of a create call.
type NewRequest struct {
	Name                string
	Phone               string
	Reason              string
	OriginChannel       string
	Priority            string
	ConversationSummary string
}

// RequestOrder picks the sort key of a read-side projection.
type RequestOrder int

const (
	// OrderQueue: PENDING before IN_PROGRESS, then priority (URGENT first), then oldest first.
	OrderQueue RequestOrder = iota
	// OrderRecent: IN_PROGRESS first, then most recently updated.
	OrderRecent
)

// RequestFilter selects rows for the read-side projections.
type RequestFilter struct {
	Statuses   []RequestStatus
	AssignedTo string
	Phone      string
	Channel    Channel
	Order      RequestOrder
	Limit      int
}
