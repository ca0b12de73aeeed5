package repository

import (
	"context"
	"testing"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestCols = []string{
	"id", "tenant_id", "name", "phone", "reason", "origin_channel", "status", "priority",
	"assigned_to", "assigned_at", "resolved_at", "internal_note", "conversation_summary",
	"last_message_at", "tracking_token_hash", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func requestRow(status entities.RequestStatus, owner *string, assignedAt, resolvedAt *time.Time) []any {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []any{
		"req-1", "acme", "Ana", "+5491100000000", "Billing question",
		entities.ChannelWeb, status, entities.PriorityNormal,
		owner, assignedAt, resolvedAt, (*string)(nil), (*string)(nil),
		(*time.Time)(nil), "", created, created,
	}
}

func TestRequestRepository_ClaimRequest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE assistance_requests").
		WithArgs("acme", "req-1", "agent-7", at).
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestRow(entities.StatusInProgress, strPtr("agent-7"), &at, nil)...))

	repo := NewRequestRepository(mock)
	req, err := repo.ClaimRequest(context.Background(), "acme", "req-1", "agent-7", at)

	require.NoError(t, err)
	assert.Equal(t, entities.StatusInProgress, req.Status)
	assert.True(t, req.IsAssignedTo("agent-7"))
	assert.NoError(t, req.CheckInvariants())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ClaimRequestLost(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE assistance_requests").
		WithArgs("acme", "req-1", "agent-8", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := NewRequestRepository(mock)
	_, err = repo.ClaimRequest(context.Background(), "acme", "req-1", "agent-8", time.Now())

	assert.ErrorIs(t, err, interfaces.ErrNotApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_GetRequestNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM assistance_requests WHERE tenant_id").
		WithArgs("other", "req-1").
		WillReturnError(pgx.ErrNoRows)

	repo := NewRequestRepository(mock)
	_, err = repo.GetRequest(context.Background(), "other", "req-1")

	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CloseRequest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	assigned := at.Add(-time.Hour)
	note := strPtr("refund issued")
	mock.ExpectQuery("UPDATE assistance_requests").
		WithArgs("acme", "req-1", "RESOLVED", at, note, []string{"IN_PROGRESS"}).
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestRow(entities.StatusResolved, strPtr("agent-7"), &assigned, &at)...))

	repo := NewRequestRepository(mock)
	req, err := repo.CloseRequest(context.Background(), "acme", "req-1",
		entities.StatusResolved, []entities.RequestStatus{entities.StatusInProgress}, note, at)

	require.NoError(t, err)
	assert.Equal(t, entities.StatusResolved, req.Status)
	require.NotNil(t, req.ResolvedAt)
	assert.Equal(t, at, *req.ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_ListRequests(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM assistance_requests WHERE tenant_id = \\$1 AND status IN \\(\\$2\\)").
		WithArgs("acme", "PENDING", 100).
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestRow(entities.StatusPending, nil, nil, nil)...))

	repo := NewRequestRepository(mock)
	list, err := repo.ListRequests(context.Background(), "acme", entities.RequestFilter{
		Statuses: []entities.RequestStatus{entities.StatusPending},
		Limit:    100,
	})

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].AssignedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_AppendMessageClosed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("WITH req AS").
		WithArgs("acme", "req-1", "msg-1", "CUSTOMER", "hola", pgxmock.AnyArg(),
			[]string{"PENDING", "IN_PROGRESS"}, (*string)(nil)).
		WillReturnError(pgx.ErrNoRows)

	repo := NewMessageRepository(mock)
	err = repo.AppendMessage(context.Background(), &entities.MessageEntry{
		ID: "msg-1", RequestID: "req-1", TenantID: "acme",
		Sender: entities.SenderCustomer, Body: "hola", SentAt: time.Now(),
	}, []entities.RequestStatus{entities.StatusPending, entities.StatusInProgress})

	assert.ErrorIs(t, err, interfaces.ErrNotApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_AppendMessageAssignsSeq(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := time.Date(2026, 3, 1, 10, 0, 0, 1000, time.UTC)
	mock.ExpectQuery("WITH req AS").
		WithArgs("acme", "req-1", "msg-2", "AGENT", "on it", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"seq", "sent_at"}).AddRow(int64(4), stored))

	m := &entities.MessageEntry{
		ID: "msg-2", RequestID: "req-1", TenantID: "acme",
		Sender: entities.SenderAgent, Body: "on it", AgentID: strPtr("agent-7"),
		SentAt: stored.Add(-time.Second),
	}
	repo := NewMessageRepository(mock)
	require.NoError(t, repo.AppendMessage(context.Background(), m, []entities.RequestStatus{entities.StatusInProgress}))

	assert.Equal(t, int64(4), m.Seq)
	assert.Equal(t, stored, m.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Snapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sent := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("SELECT (.+) FROM assistance_requests").
		WithArgs("acme", "req-1").
		WillReturnRows(pgxmock.NewRows(requestCols).
			AddRow(requestRow(entities.StatusPending, nil, nil, nil)...))
	mock.ExpectQuery("SELECT (.+) FROM request_messages").
		WithArgs("acme", "req-1", int64(0), 200).
		WillReturnRows(pgxmock.NewRows([]string{"id", "request_id", "tenant_id", "seq", "sender", "body", "agent_id", "sent_at"}).
			AddRow("msg-1", "req-1", "acme", int64(1), entities.SenderCustomer, "hola", (*string)(nil), sent))
	mock.ExpectCommit()

	store := NewStore(mock)
	req, messages, err := store.Snapshot(context.Background(), "acme", "req-1", 0, 200)

	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(1), messages[0].Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
