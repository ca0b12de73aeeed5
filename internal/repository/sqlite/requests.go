package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"
	"liveassist/internal/repository"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRequest(row rowScanner) (*entities.AssistanceRequest, error) {
	var (
		r                                   entities.AssistanceRequest
		assignedTo, note, summary           sql.NullString
		assignedAt, resolvedAt, lastMessage sql.NullInt64
		createdAt, updatedAt                int64
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.Phone, &r.Reason, &r.OriginChannel, &r.Status, &r.Priority,
		&assignedTo, &assignedAt, &resolvedAt, &note, &summary,
		&lastMessage, &r.TrackingTokenHash, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.AssignedTo = stringPtr(assignedTo)
	r.AssignedAt = timePtr(assignedAt)
	r.ResolvedAt = timePtr(resolvedAt)
	r.InternalNote = stringPtr(note)
	r.ConversationSummary = stringPtr(summary)
	r.LastMessageAt = timePtr(lastMessage)
	r.CreatedAt = fromNanos(createdAt)
	r.UpdatedAt = fromNanos(updatedAt)
	return &r, nil
}

func conditional(r *entities.AssistanceRequest, err error) (*entities.AssistanceRequest, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotApplied
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []entities.RequestStatus) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

func (s *Store) InsertRequest(ctx context.Context, r *entities.AssistanceRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assistance_requests (
			id, tenant_id, name, phone, reason, origin_channel, status, priority,
			internal_note, conversation_summary, tracking_token_hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.Name, r.Phone, r.Reason, string(r.OriginChannel), string(r.Status),
		string(r.Priority), r.InternalNote, r.ConversationSummary, r.TrackingTokenHash,
		toNanos(r.CreatedAt), toNanos(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, tenantID, id string) (*entities.AssistanceRequest, error) {
	return getRequest(ctx, s.db, tenantID, id)
}

func getRequest(ctx context.Context, q queryer, tenantID, id string) (*entities.AssistanceRequest, error) {
	r, err := scanRequest(q.QueryRowContext(ctx,
		"SELECT "+repository.RequestColumns+" FROM assistance_requests WHERE tenant_id = ? AND id = ?",
		tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.NewNotFoundError("request")
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, tenantID string, filter entities.RequestFilter) ([]entities.AssistanceRequest, error) {
	tail, args := repository.BuildRequestQuery(tenantID, filter, repository.Question)
	rows, err := s.db.QueryContext(ctx, "SELECT "+repository.RequestColumns+" FROM assistance_requests"+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	requests := []entities.AssistanceRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (s *Store) CountRequests(ctx context.Context, tenantID string, status entities.RequestStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM assistance_requests WHERE tenant_id = ? AND status = ?",
		tenantID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

func (s *Store) updateReturning(ctx context.Context, query string, args ...any) (*entities.AssistanceRequest, error) {
	r, err := conditional(scanRequest(s.db.QueryRowContext(ctx, query+" RETURNING "+repository.RequestColumns, args...)))
	if err != nil && !errors.Is(err, interfaces.ErrNotApplied) {
		return nil, fmt.Errorf("update request: %w", err)
	}
	return r, err
}

func (s *Store) ClaimRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error) {
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET status = 'IN_PROGRESS', assigned_to = ?, assigned_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'PENDING'`,
		agentID, toNanos(at), toNanos(at), tenantID, id)
}

func (s *Store) ReassignRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error) {
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET assigned_to = ?, assigned_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'IN_PROGRESS'`,
		agentID, toNanos(at), toNanos(at), tenantID, id)
}

func (s *Store) CloseRequest(ctx context.Context, tenantID, id string, to entities.RequestStatus, from []entities.RequestStatus, note *string, at time.Time) (*entities.AssistanceRequest, error) {
	args := []any{string(to), toNanos(at), toNanos(at), note, tenantID, id}
	args = append(args, statusArgs(from)...)
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET status = ?, resolved_at = ?, updated_at = ?, internal_note = COALESCE(?, internal_note)
		WHERE tenant_id = ? AND id = ? AND status IN (`+inList(len(from))+`)`,
		args...)
}

func (s *Store) ReopenRequest(ctx context.Context, tenantID, id string, at time.Time) (*entities.AssistanceRequest, error) {
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET status = 'PENDING', assigned_to = NULL, assigned_at = NULL, resolved_at = NULL, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'RESOLVED'`,
		toNanos(at), tenantID, id)
}

func (s *Store) UpdatePriority(ctx context.Context, tenantID, id string, priority entities.Priority, at time.Time) (*entities.AssistanceRequest, error) {
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET priority = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status IN ('PENDING', 'IN_PROGRESS')`,
		string(priority), toNanos(at), tenantID, id)
}

func (s *Store) UpdateInternalNote(ctx context.Context, tenantID, id string, note *string, at time.Time) (*entities.AssistanceRequest, error) {
	return s.updateReturning(ctx, `
		UPDATE assistance_requests
		SET internal_note = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		note, toNanos(at), tenantID, id)
}
