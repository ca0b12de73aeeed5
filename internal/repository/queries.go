package repository

import (
	"fmt"
	"strings"

	"liveassist/internal/entities"
)

// RequestColumns is the column list every request SELECT/RETURNING uses, in scan order.
const RequestColumns = `id, tenant_id, name, phone, reason, origin_channel, status, priority,
	assigned_to, assigned_at, resolved_at, internal_note, conversation_summary,
	last_message_at, tracking_token_hash, created_at, updated_at`

const MessageColumns = `id, request_id, tenant_id, seq, sender, body, agent_id, sent_at`

// Placeholder renders the n-th (1-based) bind parameter of a dialect.
type Placeholder func(n int) string

func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

func Question(int) string { return "?" }

// BuildRequestQuery renders the WHERE/ORDER BY/LIMIT tail of a request listing.
// The tenant predicate always comes first; nothing is listed across tenants.
func BuildRequestQuery(tenantID string, f entities.RequestFilter, ph Placeholder) (string, []any) {
	args := []any{tenantID}
	where := []string{"tenant_id = " + ph(1)}

	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			args = append(args, string(s))
			marks[i] = ph(len(args))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		where = append(where, "assigned_to = "+ph(len(args)))
	}
	if f.Phone != "" {
		args = append(args, f.Phone)
		where = append(where, "phone = "+ph(len(args)))
	}
	if f.Channel != "" {
		args = append(args, string(f.Channel))
		where = append(where, "origin_channel = "+ph(len(args)))
	}

	var sb strings.Builder
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	sb.WriteString(OrderClause(f.Order))
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(" LIMIT " + ph(len(args)))
	}
	return sb.String(), args
}

// OrderClause is priority-major, age-minor for the queue; newest activity first otherwise.
func OrderClause(order entities.RequestOrder) string {
	switch order {
	case entities.OrderRecent:
		return ` ORDER BY CASE status WHEN 'IN_PROGRESS' THEN 0 ELSE 1 END, updated_at DESC, id ASC`
	default:
		return ` ORDER BY CASE status WHEN 'PENDING' THEN 0 WHEN 'IN_PROGRESS' THEN 1 ELSE 2 END,` +
			` CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'NORMAL' THEN 2 ELSE 3 END,` +
			` created_at ASC, id ASC`
	}
}

// StatusStrings converts statuses for drivers that only bind plain strings.
func StatusStrings(statuses []entities.RequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
