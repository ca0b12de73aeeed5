package repository

import (
	"strings"
	"testing"

	"liveassist/internal/entities"

	"github.com/stretchr/testify/assert"
)

func TestBuildRequestQuery_TenantFirst(t *testing.T) {
	tail, args := BuildRequestQuery("acme", entities.RequestFilter{}, Dollar)

	assert.True(t, strings.HasPrefix(tail, " WHERE tenant_id = $1 ORDER BY"))
	assert.Equal(t, []any{"acme"}, args)
	assert.NotContains(t, tail, "LIMIT")
}

func TestBuildRequestQuery_AllFilters(t *testing.T) {
	f := entities.RequestFilter{
		Statuses:   []entities.RequestStatus{entities.StatusPending, entities.StatusInProgress},
		AssignedTo: "agent-1",
		Phone:      "+5491100000000",
		Channel:    entities.ChannelWhatsApp,
		Limit:      50,
	}

	tail, args := BuildRequestQuery("acme", f, Dollar)

	assert.Contains(t, tail, "status IN ($2, $3)")
	assert.Contains(t, tail, "assigned_to = $4")
	assert.Contains(t, tail, "phone = $5")
	assert.Contains(t, tail, "origin_channel = $6")
	assert.True(t, strings.HasSuffix(tail, " LIMIT $7"))
	assert.Equal(t, []any{"acme", "PENDING", "IN_PROGRESS", "agent-1", "+5491100000000", "WHATSAPP", 50}, args)
}

func TestBuildRequestQuery_QuestionMarks(t *testing.T) {
	f := entities.RequestFilter{Statuses: []entities.RequestStatus{entities.StatusResolved}, Limit: 10}

	tail, args := BuildRequestQuery("acme", f, Question)

	assert.Contains(t, tail, "tenant_id = ? AND status IN (?)")
	assert.True(t, strings.HasSuffix(tail, " LIMIT ?"))
	assert.Len(t, args, 3)
}

func TestOrderClause(t *testing.T) {
	queue := OrderClause(entities.OrderQueue)
	assert.Contains(t, queue, "WHEN 'URGENT' THEN 0")
	assert.Less(t, strings.Index(queue, "priority"), strings.Index(queue, "created_at ASC"))

	recent := OrderClause(entities.OrderRecent)
	assert.Contains(t, recent, "WHEN 'IN_PROGRESS' THEN 0")
	assert.Contains(t, recent, "updated_at DESC")
}
