package usecases

import (
	"context"
	"errors"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultViewLimit    = 100
	DefaultMessageLimit = 200
	MaxLimit            = 500
)

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// newID returns a time-ordered UUIDv7.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// publisher wraps the notifier: failures are logged, never returned,
// because the mutation they describe has already committed.
type publisher struct {
	notifier interfaces.Notifier
	log      zerolog.Logger
}

func (p publisher) publish(ctx context.Context, ev entities.Event) {
	if p.notifier == nil {
		return
	}
	ev.ID = newID()
	if err := p.notifier.Notify(ctx, ev); err != nil {
		p.log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("tenant_id", ev.TenantID).
			Str("request_id", ev.RequestID).
			Msg("notify failed")
	}
}

func (p publisher) requestEvent(ctx context.Context, typ entities.EventType, caller entities.Caller, req *entities.AssistanceRequest, at time.Time) {
	p.publish(ctx, entities.Event{
		Type:      typ,
		TenantID:  req.TenantID,
		RequestID: req.ID,
		Actor:     caller.Actor(),
		Time:      at,
		Request:   req,
	})
}

func notApplied(err error) bool {
	return errors.Is(err, interfaces.ErrNotApplied)
}
