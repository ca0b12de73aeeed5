package repository

import (
	"context"
	"errors"
	"fmt"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	db DB
}

func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// appendMessageSQL bumps the request's counter under its row lock and inserts in
// the same statement. sent_at is pushed forward by 1µs when the clock did not move
// so that sent_at order and seq order agree.
const appendMessageSQL = `
	WITH req AS (
		UPDATE assistance_requests
		SET message_seq = message_seq + 1,
			last_message_at = GREATEST($6::timestamptz, last_message_at + INTERVAL '1 microsecond')
		WHERE tenant_id = $1 AND id = $2 AND status = ANY($7::text[])
		RETURNING message_seq, last_message_at
	)
	INSERT INTO request_messages (id, tenant_id, request_id, seq, sender, body, agent_id, sent_at)
	SELECT $3, $1, $2, req.message_seq, $4, $5, $8, req.last_message_at FROM req
	RETURNING seq, sent_at`

func (r *MessageRepository) AppendMessage(ctx context.Context, m *entities.MessageEntry, writable []entities.RequestStatus) error {
	err := r.db.QueryRow(ctx, appendMessageSQL,
		m.TenantID, m.RequestID, m.ID, string(m.Sender), m.Body, m.SentAt, StatusStrings(writable), m.AgentID,
	).Scan(&m.Seq, &m.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ErrNotApplied
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListMessages(ctx context.Context, tenantID, requestID string, since int64, limit int) ([]entities.MessageEntry, error) {
	return listMessages(ctx, r.db, tenantID, requestID, since, limit)
}

func listMessages(ctx context.Context, q querier, tenantID, requestID string, since int64, limit int) ([]entities.MessageEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT `+MessageColumns+`
		FROM request_messages
		WHERE tenant_id = $1 AND request_id = $2 AND seq > $3
		ORDER BY sent_at ASC, id ASC
		LIMIT $4`,
		tenantID, requestID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []entities.MessageEntry{}
	for rows.Next() {
		var m entities.MessageEntry
		if err := rows.Scan(&m.ID, &m.RequestID, &m.TenantID, &m.Seq, &m.Sender, &m.Body, &m.AgentID, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
