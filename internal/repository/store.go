package repository

import (
	"context"
	"fmt"

	"liveassist/internal/entities"

	"github.com/jackc/pgx/v5"
)

// Store is the Postgres implementation of interfaces.Store.
type Store struct {
	*RequestRepository
	*MessageRepository
	db DB
}

func NewStore(db DB) *Store {
	return &Store{
		RequestRepository: NewRequestRepository(db),
		MessageRepository: NewMessageRepository(db),
		db:                db,
	}
}

// Snapshot reads the request and its messages inside one read-only
// REPEATABLE READ transaction, so both halves see the same commit point.
func (s *Store) Snapshot(ctx context.Context, tenantID, requestID string, since int64, limit int) (*entities.AssistanceRequest, []entities.MessageEntry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := getRequest(ctx, tx, tenantID, requestID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := listMessages(ctx, tx, tenantID, requestID, since, limit)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return req, messages, nil
}
