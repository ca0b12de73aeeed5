package usecases

import (
	"context"
	"strings"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/rs/zerolog"
)

// claimAttempts bounds the retries when a request is reopened between the
// failed compare-and-swap and the re-read.
const claimAttempts = 3

// ClaimCoordinator resolves concurrent attempts to take a request.
type ClaimCoordinator struct {
	store  interfaces.RequestStore
	agents interfaces.AgentDirectory
	events publisher
	log    zerolog.Logger
	now    Clock
}

// NewClaimCoordinator builds the coordinator. agents may be nil, in which case
// reassignment targets are not checked against the directory.
func NewClaimCoordinator(store interfaces.RequestStore, agents interfaces.AgentDirectory, notifier interfaces.Notifier, log zerolog.Logger) *ClaimCoordinator {
	return &ClaimCoordinator{
		store:  store,
		agents: agents,
		events: publisher{notifier: notifier, log: log},
		log:    log,
		now:    systemClock,
	}
}

// Claim makes caller the owner of a PENDING request. Exactly one concurrent
// caller wins; the others get ALREADY_CLAIMED naming the winner. A retry by
// the current owner returns the request unchanged.
func (c *ClaimCoordinator) Claim(ctx context.Context, caller entities.Caller, id string) (*entities.AssistanceRequest, error) {
	if caller.AgentID == "" {
		return nil, entities.NewValidationError("agent_id", "only agents can claim requests")
	}

	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := c.now()
		claimed, err := c.store.ClaimRequest(ctx, caller.TenantID, id, caller.AgentID, now)
		if err == nil {
			c.log.Info().Str("tenant_id", claimed.TenantID).Str("request_id", claimed.ID).
				Str("agent_id", caller.AgentID).Msg("request claimed")
			c.events.requestEvent(ctx, entities.EventRequestClaimed, caller, claimed, now)
			return claimed, nil
		}
		if !notApplied(err) {
			return nil, err
		}

		cur, err := c.store.GetRequest(ctx, caller.TenantID, id)
		if err != nil {
			return nil, err
		}
		switch {
		case cur.Status == entities.StatusInProgress && cur.IsAssignedTo(caller.AgentID):
			return cur, nil
		case cur.Status == entities.StatusInProgress:
			return nil, entities.NewAlreadyClaimedError(*cur.AssignedTo)
		case cur.Status.IsTerminal():
			return nil, entities.NewInvalidTransitionError(cur.Status, "claim")
		}
		// PENDING again: reopened after our attempt, try once more.
	}
	return nil, entities.NewInvalidTransitionError(entities.StatusPending, "claim")
}

// Reassign hands an IN_PROGRESS request to another agent. The write is
// conditional on IN_PROGRESS so a concurrent resolve/cancel wins.
func (c *ClaimCoordinator) Reassign(ctx context.Context, caller entities.Caller, id, agentID string) (*entities.AssistanceRequest, error) {
	if !caller.IsSupervisor() {
		return nil, entities.NewForbiddenError("reassign")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, entities.NewValidationError("assigned_to", "assigned_to is required")
	}
	if c.agents != nil {
		agent, err := c.agents.GetAgentByID(ctx, caller.TenantID, agentID)
		if err != nil {
			return nil, err
		}
		if agent == nil || !agent.IsActive {
			return nil, entities.NewValidationError("assigned_to", "unknown or inactive agent "+agentID)
		}
	}

	cur, err := c.store.GetRequest(ctx, caller.TenantID, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != entities.StatusInProgress {
		return nil, entities.NewInvalidTransitionError(cur.Status, "reassign")
	}
	if cur.IsAssignedTo(agentID) {
		return cur, nil
	}

	now := c.now()
	updated, err := c.store.ReassignRequest(ctx, caller.TenantID, id, agentID, now)
	if notApplied(err) {
		if cur, err = c.store.GetRequest(ctx, caller.TenantID, id); err != nil {
			return nil, err
		}
		return nil, entities.NewInvalidTransitionError(cur.Status, "reassign")
	}
	if err != nil {
		return nil, err
	}

	c.log.Info().Str("tenant_id", updated.TenantID).Str("request_id", updated.ID).
		Str("from", *cur.AssignedTo).Str("to", agentID).Msg("request reassigned")
	c.events.requestEvent(ctx, entities.EventRequestReassigned, caller, updated, now)
	return updated, nil
}
