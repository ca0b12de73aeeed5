package entities

import "time"

type Sender string

const (
	SenderCustomer Sender = "CUSTOMER"
	SenderAgent    Sender = "AGENT"
	SenderSystem   Sender = "SYSTEM"
)

func (s Sender) Valid() bool {
	return s == SenderCustomer || s == SenderAgent || s == SenderSystem
}

// MessageEntry is one immutable line of a request's conversation.
type MessageEntry struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	TenantID  string    `json:"tenant_id"`
	Seq       int64     `json:"seq"`
	Sender    Sender    `json:"sender"`
	Body      string    `json:"body"`
	AgentID   *string   `json:"agent_id"`
	SentAt    time.Time `json:"sent_at"`
}

// PublicMessage is a conversation line as the customer sees it; the
// author agent is not disclosed.
type PublicMessage struct {
	ID     string    `json:"id"`
	Seq    int64     `json:"seq"`
	Sender Sender    `json:"sender"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

func (m MessageEntry) PublicView() PublicMessage {
	return PublicMessage{ID: m.ID, Seq: m.Seq, Sender: m.Sender, Body: m.Body, SentAt: m.SentAt}
}

// PublicMessages projects a page of entries for customers. The result is never nil.
func PublicMessages(entries []MessageEntry) []PublicMessage {
	out := make([]PublicMessage, 0, len(entries))
	for _, m := range entries {
		out = append(out, m.PublicView())
	}
	return out
}

// MessagePage is one poll worth of entries. NextCursor is the seq to send back as "since".
type MessagePage struct {
	Messages   []MessageEntry `json:"messages"`
	NextCursor int64          `json:"next_cursor"`
}

// InboundMessage is a customer message arriving from a channel bridge.
type InboundMessage struct {
	TenantID string
	From     string // phone number or chat id
	Name     string // display name reported by the channel, may be empty
	Content  string
	Platform string // "whatsapp", "telegram", "web"
}
