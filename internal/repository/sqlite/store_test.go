package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ interfaces.Store              = (*Store)(nil)
	_ interfaces.AgentRepository    = (*Store)(nil)
	_ interfaces.TenantRepository   = (*Store)(nil)
	_ interfaces.SettingsRepository = (*Store)(nil)
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "liveassist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRequest(t *testing.T, store *Store, tenantID, id string, created time.Time) *entities.AssistanceRequest {
	t.Helper()
	r := &entities.AssistanceRequest{
		ID:            id,
		TenantID:      tenantID,
		Name:          "Ana",
		Phone:         "+5491100000000",
		Reason:        "Billing question",
		OriginChannel: entities.ChannelWeb,
		Status:        entities.StatusPending,
		Priority:      entities.PriorityNormal,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, store.InsertRequest(context.Background(), r))
	return r
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestInsertAndGetRequest(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	seedRequest(t, store, "acme", "req-1", created)

	got, err := store.GetRequest(ctx, "acme", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, created, got.CreatedAt)
	assert.Nil(t, got.AssignedTo)
	assert.NoError(t, got.CheckInvariants())

	_, err = store.GetRequest(ctx, "other-tenant", "req-1")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestClaimRequestIsConditional(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "req-1", now)

	won, err := store.ClaimRequest(ctx, "acme", "req-1", "agent-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, won.IsAssignedTo("agent-1"))
	assert.Equal(t, entities.StatusInProgress, won.Status)

	_, err = store.ClaimRequest(ctx, "acme", "req-1", "agent-2", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, interfaces.ErrNotApplied)

	_, err = store.ClaimRequest(ctx, "other", "req-1", "agent-3", now)
	assert.ErrorIs(t, err, interfaces.ErrNotApplied)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "req-1", now)

	const agents = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			_, err := store.ClaimRequest(context.Background(), "acme", "req-1", agent, now)
			if err == nil {
				mu.Lock()
				winners = append(winners, agent)
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, interfaces.ErrNotApplied), "unexpected error: %v", err)
		}(string(rune('a' + i)))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := store.GetRequest(context.Background(), "acme", "req-1")
	require.NoError(t, err)
	assert.True(t, got.IsAssignedTo(winners[0]))
}

func TestCloseAndReopen(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "req-1", now)
	_, err := store.ClaimRequest(ctx, "acme", "req-1", "agent-1", now)
	require.NoError(t, err)

	note := "refund issued"
	closed, err := store.CloseRequest(ctx, "acme", "req-1", entities.StatusResolved,
		[]entities.RequestStatus{entities.StatusInProgress}, &note, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusResolved, closed.Status)
	require.NotNil(t, closed.InternalNote)
	assert.Equal(t, note, *closed.InternalNote)
	assert.NoError(t, closed.CheckInvariants())

	_, err = store.CloseRequest(ctx, "acme", "req-1", entities.StatusCancelled,
		[]entities.RequestStatus{entities.StatusPending, entities.StatusInProgress}, nil, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, interfaces.ErrNotApplied)

	reopened, err := store.ReopenRequest(ctx, "acme", "req-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusPending, reopened.Status)
	assert.Nil(t, reopened.AssignedTo)
	assert.Nil(t, reopened.ResolvedAt)
	assert.NoError(t, reopened.CheckInvariants())
}

func TestAppendMessageOrderingAndGuard(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "req-1", now)
	writable := []entities.RequestStatus{entities.StatusPending, entities.StatusInProgress}

	// Same wall-clock instant for every entry: sent_at must still increase.
	for i, body := range []string{"hola", "sigo esperando", "gracias"} {
		m := &entities.MessageEntry{
			ID: "msg-" + string(rune('1'+i)), RequestID: "req-1", TenantID: "acme",
			Sender: entities.SenderCustomer, Body: body, SentAt: now,
		}
		require.NoError(t, store.AppendMessage(ctx, m, writable))
		assert.Equal(t, int64(i+1), m.Seq)
	}

	messages, err := store.ListMessages(ctx, "acme", "req-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i := 1; i < len(messages); i++ {
		assert.True(t, messages[i].SentAt.After(messages[i-1].SentAt))
		assert.Greater(t, messages[i].Seq, messages[i-1].Seq)
	}

	tail, err := store.ListMessages(ctx, "acme", "req-1", 2, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "gracias", tail[0].Body)

	req, err := store.GetRequest(ctx, "acme", "req-1")
	require.NoError(t, err)
	require.NotNil(t, req.LastMessageAt)
	assert.Equal(t, messages[2].SentAt, *req.LastMessageAt)

	_, err = store.CloseRequest(ctx, "acme", "req-1", entities.StatusCancelled, writable, nil, now)
	require.NoError(t, err)
	err = store.AppendMessage(ctx, &entities.MessageEntry{
		ID: "msg-late", RequestID: "req-1", TenantID: "acme",
		Sender: entities.SenderCustomer, Body: "hello?", SentAt: now,
	}, writable)
	assert.ErrorIs(t, err, interfaces.ErrNotApplied)
}

func TestSnapshot(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "req-1", now)
	require.NoError(t, store.AppendMessage(ctx, &entities.MessageEntry{
		ID: "msg-1", RequestID: "req-1", TenantID: "acme",
		Sender: entities.SenderCustomer, Body: "hola", SentAt: now,
	}, []entities.RequestStatus{entities.StatusPending}))

	req, messages, err := store.Snapshot(ctx, "acme", "req-1", 0, 50)
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	require.Len(t, messages, 1)

	_, _, err = store.Snapshot(ctx, "other", "req-1", 0, 50)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestListRequestsQueueOrder(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedRequest(t, store, "acme", "old-normal", base)
	seedRequest(t, store, "acme", "new-normal", base.Add(time.Minute))
	seedRequest(t, store, "acme", "new-urgent", base.Add(time.Minute))
	seedRequest(t, store, "other", "foreign", base)
	_, err := store.UpdatePriority(ctx, "acme", "new-urgent", entities.PriorityUrgent, base)
	require.NoError(t, err)
	_, err = store.ClaimRequest(ctx, "acme", "old-normal", "agent-1", base)
	require.NoError(t, err)

	list, err := store.ListRequests(ctx, "acme", entities.RequestFilter{
		Statuses: []entities.RequestStatus{entities.StatusPending, entities.StatusInProgress},
		Limit:    10,
	})
	require.NoError(t, err)

	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"new-urgent", "new-normal", "old-normal"}, ids)

	count, err := store.CountRequests(ctx, "acme", entities.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDirectory(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureTenant(ctx, "Acme Corp", "Acme"))
	tenant, err := store.GetTenant(ctx, "acme-corp")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "Acme", tenant.Name)

	agent := &entities.Agent{
		ID: "agent-1", TenantID: "acme-corp", Username: "lucia", PasswordHash: "x",
		Role: entities.RoleAgent, IsActive: true, CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateAgent(ctx, agent))

	got, err := store.GetAgentByUsername(ctx, "acme-corp", "lucia")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsActive)

	missing, err := store.GetAgentByID(ctx, "other", "agent-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.UpdateAgentStatus(ctx, "acme-corp", "agent-1", false))
	got, err = store.GetAgentByID(ctx, "acme-corp", "agent-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.ErrorIs(t, store.UpdateAgentStatus(ctx, "acme-corp", "nobody", true), entities.ErrNotFound)

	require.NoError(t, store.SetSetting(ctx, "acme-corp", "welcome_message", "Hola"))
	require.NoError(t, store.SetSetting(ctx, "acme-corp", "welcome_message", "Buenas"))
	value, err := store.GetSetting(ctx, "acme-corp", "welcome_message")
	require.NoError(t, err)
	assert.Equal(t, "Buenas", value)
	settings, err := store.ListSettings(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Len(t, settings, 1)
}

func TestClaimRequestNoRowsWithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE assistance_requests").
		WithArgs("agent-1", sqlmock.AnyArg(), sqlmock.AnyArg(), "acme", "req-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := newStore(db)
	_, err = store.ClaimRequest(context.Background(), "acme", "req-1", "agent-1", time.Now())
	assert.ErrorIs(t, err, interfaces.ErrNotApplied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRequestWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO assistance_requests").WillReturnError(errors.New("disk I/O error"))

	store := newStore(db)
	err = store.InsertRequest(context.Background(), &entities.AssistanceRequest{ID: "req-1", TenantID: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert request: disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE assistance_requests").
		WillReturnRows(sqlmock.NewRows([]string{"message_seq", "last_message_at"}).AddRow(int64(1), int64(100)))
	mock.ExpectExec("INSERT INTO request_messages").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	store := newStore(db)
	err = store.AppendMessage(context.Background(), &entities.MessageEntry{
		ID: "msg-1", RequestID: "req-1", TenantID: "acme", Sender: entities.SenderCustomer, Body: "hola",
	}, []entities.RequestStatus{entities.StatusPending})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
