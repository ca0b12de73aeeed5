package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// querier is satisfied by both DB and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RequestRepository is the Postgres request store. Each mutation is a single
// UPDATE ... WHERE status ... RETURNING statement; a missing row means the guard failed.
type RequestRepository struct {
	db DB
}

func NewRequestRepository(db DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func scanRequest(row pgx.Row) (*entities.AssistanceRequest, error) {
	var r entities.AssistanceRequest
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.Phone, &r.Reason, &r.OriginChannel, &r.Status, &r.Priority,
		&r.AssignedTo, &r.AssignedAt, &r.ResolvedAt, &r.InternalNote, &r.ConversationSummary,
		&r.LastMessageAt, &r.TrackingTokenHash, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// conditional maps "no row returned" to interfaces.ErrNotApplied.
func conditional(r *entities.AssistanceRequest, err error) (*entities.AssistanceRequest, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrNotApplied
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RequestRepository) InsertRequest(ctx context.Context, req *entities.AssistanceRequest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO assistance_requests (
			id, tenant_id, name, phone, reason, origin_channel, status, priority,
			internal_note, conversation_summary, tracking_token_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, req.ID, req.TenantID, req.Name, req.Phone, req.Reason, string(req.OriginChannel), string(req.Status),
		string(req.Priority), req.InternalNote, req.ConversationSummary, req.TrackingTokenHash,
		req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetRequest(ctx context.Context, tenantID, id string) (*entities.AssistanceRequest, error) {
	return getRequest(ctx, r.db, tenantID, id)
}

func getRequest(ctx context.Context, q querier, tenantID, id string) (*entities.AssistanceRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx,
		"SELECT "+RequestColumns+" FROM assistance_requests WHERE tenant_id = $1 AND id = $2",
		tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NewNotFoundError("request")
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (r *RequestRepository) ListRequests(ctx context.Context, tenantID string, filter entities.RequestFilter) ([]entities.AssistanceRequest, error) {
	tail, args := BuildRequestQuery(tenantID, filter, Dollar)
	rows, err := r.db.Query(ctx, "SELECT "+RequestColumns+" FROM assistance_requests"+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	requests := []entities.AssistanceRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (r *RequestRepository) CountRequests(ctx context.Context, tenantID string, status entities.RequestStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM assistance_requests WHERE tenant_id = $1 AND status = $2",
		tenantID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// ClaimRequest is the compare-and-swap: only a PENDING row can be taken.
func (r *RequestRepository) ClaimRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET status = 'IN_PROGRESS', assigned_to = $3, assigned_at = $4, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'PENDING'
		RETURNING `+RequestColumns,
		tenantID, id, agentID, at)))
}

func (r *RequestRepository) ReassignRequest(ctx context.Context, tenantID, id, agentID string, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET assigned_to = $3, assigned_at = $4, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'IN_PROGRESS'
		RETURNING `+RequestColumns,
		tenantID, id, agentID, at)))
}

func (r *RequestRepository) CloseRequest(ctx context.Context, tenantID, id string, to entities.RequestStatus, from []entities.RequestStatus, note *string, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET status = $3, resolved_at = $4, updated_at = $4,
			internal_note = COALESCE($5, internal_note)
		WHERE tenant_id = $1 AND id = $2 AND status = ANY($6)
		RETURNING `+RequestColumns,
		tenantID, id, string(to), at, note, StatusStrings(from))))
}

func (r *RequestRepository) ReopenRequest(ctx context.Context, tenantID, id string, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET status = 'PENDING', assigned_to = NULL, assigned_at = NULL, resolved_at = NULL, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND status = 'RESOLVED'
		RETURNING `+RequestColumns,
		tenantID, id, at)))
}

func (r *RequestRepository) UpdatePriority(ctx context.Context, tenantID, id string, priority entities.Priority, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET priority = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND status IN ('PENDING', 'IN_PROGRESS')
		RETURNING `+RequestColumns,
		tenantID, id, string(priority), at)))
}

func (r *RequestRepository) UpdateInternalNote(ctx context.Context, tenantID, id string, note *string, at time.Time) (*entities.AssistanceRequest, error) {
	return conditional(scanRequest(r.db.QueryRow(ctx, `
		UPDATE assistance_requests
		SET internal_note = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+RequestColumns,
		tenantID, id, note, at)))
}
