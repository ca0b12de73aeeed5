package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"
	"liveassist/internal/repository"
)

// AppendMessage bumps the request counter and inserts the entry in one
// transaction. last_message_at moves forward by at least 1ns per entry.
func (s *Store) AppendMessage(ctx context.Context, m *entities.MessageEntry, writable []entities.RequestStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	args := []any{toNanos(m.SentAt), m.TenantID, m.RequestID}
	args = append(args, statusArgs(writable)...)
	var seq, sentAt int64
	err = tx.QueryRowContext(ctx, `
		UPDATE assistance_requests
		SET message_seq = message_seq + 1,
			last_message_at = MAX(?, COALESCE(last_message_at + 1, 0))
		WHERE tenant_id = ? AND id = ? AND status IN (`+inList(len(writable))+`)
		RETURNING message_seq, last_message_at`,
		args...).Scan(&seq, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotApplied
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO request_messages (id, tenant_id, request_id, seq, sender, body, agent_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.RequestID, seq, string(m.Sender), m.Body, m.AgentID, sentAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	m.Seq = seq
	m.SentAt = fromNanos(sentAt)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, tenantID, requestID string, since int64, limit int) ([]entities.MessageEntry, error) {
	return listMessages(ctx, s.db, tenantID, requestID, since, limit)
}

func listMessages(ctx context.Context, q queryer, tenantID, requestID string, since int64, limit int) ([]entities.MessageEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+repository.MessageColumns+`
		FROM request_messages
		WHERE tenant_id = ? AND request_id = ? AND seq > ?
		ORDER BY sent_at ASC, id ASC
		LIMIT ?`,
		tenantID, requestID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []entities.MessageEntry{}
	for rows.Next() {
		var (
			m       entities.MessageEntry
			agentID sql.NullString
			sentAt  int64
		)
		if err := rows.Scan(&m.ID, &m.RequestID, &m.TenantID, &m.Seq, &m.Sender, &m.Body, &agentID, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentID = stringPtr(agentID)
		m.SentAt = fromNanos(sentAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Snapshot reads the request and its messages inside one read transaction.
func (s *Store) Snapshot(ctx context.Context, tenantID, requestID string, since int64, limit int) (*entities.AssistanceRequest, []entities.MessageEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	r, err := getRequest(ctx, tx, tenantID, requestID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := listMessages(ctx, tx, tenantID, requestID, since, limit)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return r, messages, nil
}
