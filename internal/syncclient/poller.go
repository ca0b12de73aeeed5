package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"liveassist/internal/entities"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// View is one polled resource. Path is re-evaluated on every tick so a
// view can advance its own cursor from Changed.
type View struct {
	Name    string
	Path    func() string
	Changed func(body []byte) error
}

type viewState struct {
	View
	etag string
}

// Poller runs every view on its own loop with its own ETag. The server's
// X-Poll-Interval overrides the configured interval once seen.
type Poller struct {
	client   *Client
	log      zerolog.Logger
	interval time.Duration

	mu    sync.Mutex
	views []*viewState
}

func NewPoller(client *Client, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{client: client, interval: interval, log: log}
}

func (p *Poller) Add(v View) {
	p.mu.Lock()
	p.views = append(p.views, &viewState{View: v})
	p.mu.Unlock()
}

// Run polls until ctx is done or a view fails with an API error other than
// NOT_FOUND. Transport errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	views := append([]*viewState(nil), p.views...)
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, v := range views {
		v := v
		g.Go(func() error { return p.loop(ctx, v) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Start runs the poller in the background. stop cancels every view and
// returns Run's result once all loops have exited.
func (p *Poller) Start(ctx context.Context) (stop func() error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func (p *Poller) loop(ctx context.Context, v *viewState) error {
	log := p.log.With().Str("view", v.Name).Logger()
	wait := p.interval
	for {
		next, err := p.tick(ctx, v)
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Code != string(entities.CodeNotFound):
			return err
		case err != nil && ctx.Err() == nil:
			log.Warn().Err(err).Msg("poll failed")
		}
		if next > 0 {
			wait = next
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tick polls one view once and returns the interval the server advertised.
func (p *Poller) tick(ctx context.Context, v *viewState) (time.Duration, error) {
	resp, err := p.client.Get(ctx, v.Path(), v.etag)
	if err != nil {
		return 0, err
	}
	v.etag = resp.ETag
	if resp.NotModified || v.Changed == nil {
		return resp.PollInterval, nil
	}
	return resp.PollInterval, v.Changed(resp.Body)
}

// QueueView polls the open queue and hands every changed list to fn.
func QueueView(fn func([]entities.AssistanceRequest)) View {
	return View{
		Name: "queue",
		Path: func() string { return QueuePath },
		Changed: func(body []byte) error {
			var list []entities.AssistanceRequest
			if err := json.Unmarshal(body, &list); err != nil {
				return err
			}
			fn(list)
			return nil
		},
	}
}

// ConversationView polls a request's messages from since, advancing its
// cursor past every delivered page.
func ConversationView(id string, since int64, fn func([]entities.MessageEntry)) View {
	var mu sync.Mutex
	cursor := since
	return View{
		Name: "conversation:" + id,
		Path: func() string {
			mu.Lock()
			defer mu.Unlock()
			return MessagesPath(id, cursor)
		},
		Changed: func(body []byte) error {
			var page entities.MessagePage
			if err := json.Unmarshal(body, &page); err != nil {
				return err
			}
			mu.Lock()
			cursor = page.NextCursor
			mu.Unlock()
			if len(page.Messages) > 0 {
				fn(page.Messages)
			}
			return nil
		},
	}
}
