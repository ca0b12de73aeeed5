package infrastructure

import (
	"context"
	"errors"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"github.com/rs/zerolog"
)

// LogNotifier writes every lifecycle event to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, ev entities.Event) error {
	e := n.log.Info().
		Str("event_id", ev.ID).
		Str("event", string(ev.Type)).
		Str("tenant_id", ev.TenantID).
		Str("request_id", ev.RequestID).
		Str("actor", ev.Actor)
	if ev.Request != nil {
		e = e.Str("status", string(ev.Request.Status))
	}
	if ev.Message != nil {
		e = e.Int64("seq", ev.Message.Seq).Str("sender", string(ev.Message.Sender))
	}
	e.Msg("request event")
	return nil
}

// MultiNotifier fans one event out to several notifiers. Every notifier is
// called even if an earlier one fails; the failures are joined.
type MultiNotifier []interfaces.Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev entities.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
