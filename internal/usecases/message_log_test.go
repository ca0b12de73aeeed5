package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"liveassist/internal/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentAppendsAreOrdered(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "Ana")

	const writers = 30
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		body := fmt.Sprintf("message %d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.messages.Append(context.Background(), agentCaller("A1"), req.ID, entities.SenderCustomer, body)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	page, err := f.messages.List(context.Background(), agentCaller("A1"), req.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, writers)
	seen := map[string]bool{}
	for i, m := range page.Messages {
		assert.Equal(t, int64(i+1), m.Seq)
		if i > 0 {
			assert.True(t, m.SentAt.After(page.Messages[i-1].SentAt))
		}
		seen[m.Body] = true
	}
	assert.Len(t, seen, writers)
	assert.Equal(t, int64(writers), page.NextCursor)

	updated := f.requireInvariants(t, req.ID)
	require.NotNil(t, updated.LastMessageAt)
	assert.True(t, updated.LastMessageAt.Equal(page.Messages[writers-1].SentAt))
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "Ana")

	_, err := f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.SenderCustomer, "   ")
	assert.True(t, errors.Is(err, entities.ErrEmptyBody))

	_, err = f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.SenderCustomer, strings.Repeat("x", MaxMessageBody+1))
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))

	_, err = f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.Sender("BOT"), "hi")
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))

	_, err = f.messages.Append(ctx, customer(testTenant), req.ID, entities.SenderAgent, "hi")
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))

	_, err = f.messages.Append(ctx, agentCaller("A1"), "missing", entities.SenderCustomer, "hi")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestAgentEntriesCarryAgentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "Ana")

	m, err := f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.SenderAgent, "hello Ana")
	require.NoError(t, err)
	require.NotNil(t, m.AgentID)
	assert.Equal(t, "A1", *m.AgentID)

	c, err := f.messages.Append(ctx, customer(testTenant), req.ID, entities.SenderCustomer, "hi")
	require.NoError(t, err)
	assert.Nil(t, c.AgentID)
	assert.Equal(t, 2, f.events.count(entities.EventMessageAppended))
}

func TestClosedRequestRejectsAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "Ana")
	_, err := f.lifecycle.Cancel(ctx, agentCaller("A1"), req.ID)
	require.NoError(t, err)

	for _, sender := range []entities.Sender{entities.SenderCustomer, entities.SenderAgent} {
		_, err = f.messages.Append(ctx, agentCaller("A1"), req.ID, sender, "still there?")
		require.Error(t, err)
		assert.True(t, errors.Is(err, entities.ErrRequestClosed))
	}

	_, err = f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.SenderSystem, "audit")
	assert.NoError(t, err)
}

func TestListSinceCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "Ana")
	for i := 0; i < 5; i++ {
		_, err := f.messages.Append(ctx, agentCaller("A1"), req.ID, entities.SenderCustomer, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page, err := f.messages.List(ctx, agentCaller("A1"), req.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(2), page.NextCursor)

	page, err = f.messages.List(ctx, agentCaller("A1"), req.ID, page.NextCursor, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "m2", page.Messages[0].Body)
	assert.Equal(t, int64(5), page.NextCursor)

	empty, err := f.messages.List(ctx, agentCaller("A1"), req.ID, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Messages)
	assert.Equal(t, int64(5), empty.NextCursor)

	_, err = f.messages.List(ctx, agentCaller("A1"), req.ID, -1, 0)
	assert.Equal(t, entities.CodeValidation, entities.CodeOf(err))
	_, err = f.messages.List(ctx, agentCaller("A1"), "missing", 0, 0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
