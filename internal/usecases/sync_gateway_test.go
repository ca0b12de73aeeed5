package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"liveassist/internal/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublic(t *testing.T, f *fixture) *TrackedRequest {
	t.Helper()
	tracked, err := f.gateway.CreatePublic(context.Background(), testTenant, entities.NewRequest{
		Name:          "Ana",
		Phone:         "51999000111",
		Reason:        "Billing issue",
		OriginChannel: "PHONE",
	})
	require.NoError(t, err)
	return tracked
}

func TestCreatePublicIssuesToken(t *testing.T) {
	f := newFixture(t)
	tracked := newPublic(t, f)

	assert.NotEmpty(t, tracked.TrackingToken)
	assert.Equal(t, entities.ChannelWeb, tracked.Request.OriginChannel)
	assert.Equal(t, entities.StatusPending, tracked.Request.Status)

	stored, err := f.store.GetRequest(context.Background(), testTenant, tracked.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, HashTrackingToken(tracked.TrackingToken), stored.TrackingTokenHash)
	assert.NotEqual(t, tracked.TrackingToken, stored.TrackingTokenHash)
}

func TestCreatePublicUnknownTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.gateway.CreatePublic(context.Background(), "nobody", entities.NewRequest{Name: "n", Phone: "1", Reason: "r"})
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestPublicSnapshotRequiresToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracked := newPublic(t, f)
	id := tracked.Request.ID

	_, err := f.gateway.PublicSnapshot(ctx, testTenant, id, "wrong", 0, 0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	_, err = f.gateway.PublicSnapshot(ctx, testTenant, id, "", 0, 0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	_, err = f.gateway.PublicAppend(ctx, testTenant, id, "wrong", "hi")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	// requests created by agents have no token and are never public
	agentMade := f.create(t, "Luis")
	_, err = f.gateway.PublicSnapshot(ctx, testTenant, agentMade.ID, "anything", 0, 0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestPublicConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracked := newPublic(t, f)
	id, token := tracked.Request.ID, tracked.TrackingToken

	_, err := f.gateway.PublicAppend(ctx, testTenant, id, token, "hello?")
	require.NoError(t, err)
	_, err = f.claims.Claim(ctx, agentCaller("A1"), id)
	require.NoError(t, err)
	_, err = f.messages.Append(ctx, agentCaller("A1"), id, entities.SenderAgent, "hi Ana")
	require.NoError(t, err)

	snap, err := f.gateway.PublicSnapshot(ctx, testTenant, id, token, 0, 0)
	require.NoError(t, err)
	assert.True(t, snap.Request.Assigned)
	assert.Equal(t, entities.StatusInProgress, snap.Request.Status)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, entities.SenderCustomer, snap.Messages[0].Sender)
	assert.Equal(t, entities.SenderAgent, snap.Messages[1].Sender)
	assert.Equal(t, int64(2), snap.NextCursor)

	next, err := f.gateway.PublicSnapshot(ctx, testTenant, id, token, snap.NextCursor, 0)
	require.NoError(t, err)
	assert.Empty(t, next.Messages)
	assert.Equal(t, snap.NextCursor, next.NextCursor)

	view, err := f.gateway.PublicCancel(ctx, testTenant, id, token)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, view.Status)
	f.requireInvariants(t, id)

	again, err := f.gateway.PublicCancel(ctx, testTenant, id, token)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, again.Status)

	_, err = f.gateway.PublicAppend(ctx, testTenant, id, token, "wait")
	assert.True(t, errors.Is(err, entities.ErrRequestClosed))
}

func TestTrackingTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token, err := newTrackingToken()
		require.NoError(t, err)
		assert.Len(t, token, 32)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestPublicSnapshotHidesAgentIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracked := newPublic(t, f)
	id, token := tracked.Request.ID, tracked.TrackingToken

	_, err := f.claims.Claim(ctx, agentCaller("A1"), id)
	require.NoError(t, err)
	_, err = f.messages.Append(ctx, agentCaller("A1"), id, entities.SenderAgent, "hi Ana")
	require.NoError(t, err)
	_, err = f.lifecycle.Cancel(ctx, agentCaller("A1"), id)
	require.NoError(t, err)

	snap, err := f.gateway.PublicSnapshot(ctx, testTenant, id, token, 0, 0)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, entities.SenderSystem, snap.Messages[1].Sender)
	assert.Equal(t, "Request cancelled by the agent.", snap.Messages[1].Body)

	body, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "A1")
	assert.NotContains(t, string(body), "agent_id")
}

func TestClosureEntryNamesRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tracked := newPublic(t, f)
	_, err := f.gateway.PublicCancel(ctx, testTenant, tracked.Request.ID, tracked.TrackingToken)
	require.NoError(t, err)
	snap, err := f.gateway.PublicSnapshot(ctx, testTenant, tracked.Request.ID, tracked.TrackingToken, 0, 0)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "Request cancelled by the customer.", snap.Messages[0].Body)

	req := f.create(t, "Luis")
	_, err = f.lifecycle.Cancel(ctx, supervisorCaller("S1"), req.ID)
	require.NoError(t, err)
	page, err := f.messages.List(ctx, supervisorCaller("S1"), req.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "Request cancelled by a supervisor.", page.Messages[0].Body)
}
