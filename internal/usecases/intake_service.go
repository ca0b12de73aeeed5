package usecases

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/interfaces"

	"github.com/rs/zerolog"
)

const (
	defaultWelcomeMessage = "Hello! Write your question and an agent will assist you shortly."
	defaultHandoffMessage = "Thanks, your request was received. An agent will reply here as soon as possible."
	defaultClosedMessage  = "Your request is closed. Write again if you need more help."
	noOpenRequestMessage  = "You have no open request. Write your question to open one."
	rateLimitedMessage    = "You are sending messages too fast, please wait a moment."
)

// IntakeService turns channel messages (WhatsApp, Telegram) into requests and
// conversation entries. One open request per chat: the first message opens it,
// later messages are appended to it.
type IntakeService struct {
	requests  interfaces.RequestReader
	lifecycle *LifecycleManager
	messages  *MessageLog
	settings  interfaces.SettingsRepository
	sessions  *infrastructure.SessionManager
	limiter   *infrastructure.MessageRateLimiter
	relay     *ChannelRelay
	log       zerolog.Logger
}

func NewIntakeService(
	requests interfaces.RequestReader,
	lifecycle *LifecycleManager,
	messages *MessageLog,
	settings interfaces.SettingsRepository,
	sessions *infrastructure.SessionManager,
	limiter *infrastructure.MessageRateLimiter,
	relay *ChannelRelay,
	log zerolog.Logger,
) *IntakeService {
	return &IntakeService{
		requests:  requests,
		lifecycle: lifecycle,
		messages:  messages,
		settings:  settings,
		sessions:  sessions,
		limiter:   limiter,
		relay:     relay,
		log:       log.With().Str("component", "intake").Logger(),
	}
}

// ChannelFor maps a bridge platform to the request origin channel.
// Telegram has no channel of its own and is recorded as WEB.
func ChannelFor(platform string) entities.Channel {
	if strings.EqualFold(platform, "whatsapp") {
		return entities.ChannelWhatsApp
	}
	return entities.ChannelWeb
}

// Handle adapts ProcessMessage to the bridges' inbound callback.
func (s *IntakeService) Handle(ctx context.Context, msg entities.InboundMessage, reply interfaces.Messenger) {
	if err := s.ProcessMessage(ctx, msg, reply); err != nil {
		s.log.Error().Err(err).
			Str("tenant_id", msg.TenantID).
			Str("platform", msg.Platform).
			Str("from", msg.From).
			Msg("inbound message failed")
	}
}

// ProcessMessage handles one customer message:
//  1. /cancel closes the open request
//  2. /status and /start describe the open request (or greet)
//  3. any other text is appended to the open request, or opens a new one
func (s *IntakeService) ProcessMessage(ctx context.Context, msg entities.InboundMessage, reply interfaces.Messenger) error {
	content := strings.TrimSpace(msg.Content)
	if content == "" || msg.TenantID == "" || msg.From == "" {
		return nil
	}

	key := infrastructure.SessionKey(msg.TenantID, msg.Platform, msg.From)
	if s.limiter != nil && !s.limiter.Allow(key) {
		s.log.Warn().Str("tenant_id", msg.TenantID).Str("from", msg.From).
			Dur("wait", s.limiter.WaitTime(key)).Msg("inbound rate limited")
		s.send(reply, msg.From, rateLimitedMessage)
		return nil
	}

	session := s.sessions.GetOrCreateSession(key)
	session.Begin()
	defer session.End()

	caller := customer(msg.TenantID)
	open, err := s.openRequest(ctx, msg, session)
	if err != nil {
		return err
	}

	switch strings.ToLower(content) {
	case "/cancel":
		if open == nil {
			s.send(reply, msg.From, noOpenRequestMessage)
			return nil
		}
		s.unbind(open.ID)
		session.SetRequest("")
		if _, err := s.lifecycle.Cancel(ctx, caller, open.ID); err != nil {
			return err
		}
		s.send(reply, msg.From, s.setting(ctx, msg.TenantID, entities.SettingClosedMessage, defaultClosedMessage))
		return nil
	case "/status", "/start":
		if open == nil {
			s.send(reply, msg.From, s.setting(ctx, msg.TenantID, entities.SettingWelcomeMessage, defaultWelcomeMessage))
			return nil
		}
		s.send(reply, msg.From, StatusText(open))
		return nil
	}

	if open == nil {
		return s.openNew(ctx, msg, content, session, reply)
	}

	_, err = s.messages.Append(ctx, caller, open.ID, entities.SenderCustomer, content)
	if entities.CodeOf(err) == entities.CodeRequestClosed {
		// closed by an agent between lookup and append
		s.unbind(open.ID)
		session.SetRequest("")
		s.send(reply, msg.From, s.setting(ctx, msg.TenantID, entities.SettingClosedMessage, defaultClosedMessage))
		return nil
	}
	if err != nil {
		return err
	}
	s.bind(open.ID, msg.From, reply)
	return nil
}

// openRequest finds the chat's open request, first through the session cache,
// then by phone and channel in the store.
func (s *IntakeService) openRequest(ctx context.Context, msg entities.InboundMessage, session *infrastructure.ChatSession) (*entities.AssistanceRequest, error) {
	if id := session.CurrentRequest(); id != "" {
		req, err := s.requests.GetRequest(ctx, msg.TenantID, id)
		if err != nil && entities.CodeOf(err) != entities.CodeNotFound {
			return nil, err
		}
		if req != nil && !req.Status.IsTerminal() {
			return req, nil
		}
		session.SetRequest("")
	}

	found, err := s.requests.ListRequests(ctx, msg.TenantID, entities.RequestFilter{
		Statuses: openStatuses,
		Phone:    msg.From,
		Channel:  ChannelFor(msg.Platform),
		Order:    entities.OrderRecent,
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	session.SetRequest(found[0].ID)
	return &found[0], nil
}

func (s *IntakeService) openNew(ctx context.Context, msg entities.InboundMessage, content string, session *infrastructure.ChatSession, reply interfaces.Messenger) error {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = msg.From
	}
	caller := customer(msg.TenantID)
	req, err := s.lifecycle.Create(ctx, caller, entities.NewRequest{
		Name:          truncateRunes(name, maxNameLen),
		Phone:         msg.From,
		Reason:        truncateRunes(content, maxReasonLen),
		OriginChannel: string(ChannelFor(msg.Platform)),
	})
	if err != nil {
		return err
	}
	session.SetRequest(req.ID)
	s.bind(req.ID, msg.From, reply)

	if _, err := s.messages.Append(ctx, caller, req.ID, entities.SenderCustomer, truncateRunes(content, MaxMessageBody)); err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID).Msg("first message not recorded")
	}

	s.send(reply, msg.From, s.setting(ctx, msg.TenantID, entities.SettingHandoffMessage, defaultHandoffMessage))
	return nil
}

// StatusText is the customer-facing description of a request.
func StatusText(req *entities.AssistanceRequest) string {
	switch req.Status {
	case entities.StatusPending:
		return "Your request is waiting for an agent."
	case entities.StatusInProgress:
		return "An agent is handling your request."
	case entities.StatusResolved:
		return "Your request was resolved."
	default:
		return "Your request was cancelled."
	}
}

func (s *IntakeService) setting(ctx context.Context, tenantID, key, def string) string {
	if s.settings == nil {
		return def
	}
	v, err := s.settings.GetSetting(ctx, tenantID, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("setting lookup failed")
		return def
	}
	if v == "" {
		return def
	}
	return v
}

func (s *IntakeService) send(reply interfaces.Messenger, to, text string) {
	if reply == nil {
		return
	}
	if err := reply.SendMessage(to, text); err != nil {
		s.log.Warn().Err(err).Str("to", to).Msg("reply failed")
	}
}

func (s *IntakeService) bind(requestID, to string, via interfaces.Messenger) {
	if s.relay != nil {
		s.relay.Bind(requestID, to, via)
	}
}

func (s *IntakeService) unbind(requestID string) {
	if s.relay != nil {
		s.relay.Unbind(requestID)
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

type route struct {
	to  string
	via interfaces.Messenger
}

// ChannelRelay forwards agent replies and closures to the chat a request came
// from. It is a Notifier; routes are registered by IntakeService and live in
// memory only.
type ChannelRelay struct {
	mu       sync.RWMutex
	routes   map[string]route
	settings interfaces.SettingsRepository
	log      zerolog.Logger
}

func NewChannelRelay(settings interfaces.SettingsRepository, log zerolog.Logger) *ChannelRelay {
	return &ChannelRelay{
		routes:   make(map[string]route),
		settings: settings,
		log:      log.With().Str("component", "relay").Logger(),
	}
}

func (r *ChannelRelay) Bind(requestID, to string, via interfaces.Messenger) {
	if via == nil {
		return
	}
	r.mu.Lock()
	r.routes[requestID] = route{to: to, via: via}
	r.mu.Unlock()
}

func (r *ChannelRelay) Unbind(requestID string) {
	r.mu.Lock()
	delete(r.routes, requestID)
	r.mu.Unlock()
}

func (r *ChannelRelay) Routes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

func (r *ChannelRelay) lookup(requestID string) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[requestID]
	return rt, ok
}

func (r *ChannelRelay) Notify(ctx context.Context, ev entities.Event) error {
	rt, ok := r.lookup(ev.RequestID)
	if !ok {
		return nil
	}

	switch ev.Type {
	case entities.EventMessageAppended:
		if ev.Message == nil || ev.Message.Sender != entities.SenderAgent {
			return nil
		}
		return rt.via.SendMessage(rt.to, ev.Message.Body)
	case entities.EventRequestClaimed:
		return rt.via.SendMessage(rt.to, "An agent joined the conversation.")
	case entities.EventRequestResolved, entities.EventRequestCancelled:
		r.Unbind(ev.RequestID)
		text := defaultClosedMessage
		if r.settings != nil {
			if v, err := r.settings.GetSetting(ctx, ev.TenantID, entities.SettingClosedMessage); err == nil && v != "" {
				text = v
			}
		}
		return rt.via.SendMessage(rt.to, text)
	}
	return nil
}
