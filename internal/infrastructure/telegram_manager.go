package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Callback data of the inline buttons sent with intake replies.
const (
	CallbackCancelRequest = "req:cancel"
	CallbackRequestStatus = "req:status"
)

// TelegramBotInstance represents a single tenant's Telegram bot
type TelegramBotInstance struct {
	Bot       *tgbotapi.BotAPI
	TenantID  string
	StopChan  chan struct{}
	IsRunning bool
	mu        sync.Mutex
}

func (i *TelegramBotInstance) running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.IsRunning
}

// TelegramBotManager manages per-tenant Telegram bot instances
type TelegramBotManager struct {
	bots     map[string]*TelegramBotInstance
	mu       sync.RWMutex
	settings interfaces.SettingsRepository
	sessions *SessionManager
	log      zerolog.Logger

	// Inbound receives every customer text and button press.
	Inbound InboundHandler
}

func NewTelegramBotManager(settings interfaces.SettingsRepository, sessions *SessionManager, log zerolog.Logger) *TelegramBotManager {
	return &TelegramBotManager{
		bots:     make(map[string]*TelegramBotInstance),
		settings: settings,
		sessions: sessions,
		log:      log.With().Str("bridge", "telegram").Logger(),
	}
}

// GetBot returns existing bot for tenant (nil if not connected)
func (m *TelegramBotManager) GetBot(tenantID string) *TelegramBotInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bots[tenantID]
}

// ValidateToken checks if a token is valid by creating a test bot
func (m *TelegramBotManager) ValidateToken(token string) (string, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return bot.Self.UserName, nil
}

// ConnectTenant starts the bot whose token is stored in the tenant settings.
func (m *TelegramBotManager) ConnectTenant(ctx context.Context, tenantID, tokenKey string) (*TelegramBotInstance, error) {
	token, err := m.settings.GetSetting(ctx, tenantID, tokenKey)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no telegram token configured for tenant %s", tenantID)
	}
	return m.ConnectBot(tenantID, token)
}

// ConnectBot creates and starts a bot for a tenant with its token
func (m *TelegramBotManager) ConnectBot(tenantID, token string) (*TelegramBotInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bots[tenantID]; ok && existing.running() {
		return existing, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	instance := &TelegramBotInstance{
		Bot:      bot,
		TenantID: tenantID,
		StopChan: make(chan struct{}),
	}
	m.bots[tenantID] = instance

	go m.startPolling(instance)

	return instance, nil
}

// startPolling runs the update loop for a tenant's bot
func (m *TelegramBotManager) startPolling(instance *TelegramBotInstance) {
	instance.mu.Lock()
	instance.IsRunning = true
	instance.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := instance.Bot.GetUpdatesChan(u)
	log := m.log.With().Str("tenant_id", instance.TenantID).Str("bot", instance.Bot.Self.UserName).Logger()
	log.Info().Msg("telegram polling started")

	for {
		select {
		case <-instance.StopChan:
			instance.Bot.StopReceivingUpdates()
			instance.mu.Lock()
			instance.IsRunning = false
			instance.mu.Unlock()
			log.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go m.handleUpdate(instance, update)
		}
	}
}

// ToInbound converts a Telegram update into an inbound message. Button presses
// become the matching command text. ok is false for updates without text.
func ToInbound(tenantID string, update tgbotapi.Update) (msg entities.InboundMessage, ok bool) {
	switch {
	case update.Message != nil && strings.TrimSpace(update.Message.Text) != "":
		from := update.Message.From
		name := ""
		if from != nil {
			name = strings.TrimSpace(from.FirstName + " " + from.LastName)
		}
		return entities.InboundMessage{
			TenantID: tenantID,
			From:     strconv.FormatInt(update.Message.Chat.ID, 10),
			Name:     name,
			Content:  update.Message.Text,
			Platform: "telegram",
		}, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		content := ""
		switch update.CallbackQuery.Data {
		case CallbackCancelRequest:
			content = "/cancel"
		case CallbackRequestStatus:
			content = "/status"
		default:
			return entities.InboundMessage{}, false
		}
		return entities.InboundMessage{
			TenantID: tenantID,
			From:     strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10),
			Content:  content,
			Platform: "telegram",
		}, true
	}
	return entities.InboundMessage{}, false
}

func (m *TelegramBotManager) handleUpdate(instance *TelegramBotInstance, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		// Acknowledge callback
		instance.Bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
		if update.CallbackQuery.Message != nil && m.sessions != nil {
			key := SessionKey(instance.TenantID, "telegram", strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10))
			if !m.sessions.GetOrCreateSession(key).IsAllowedClick() {
				return
			}
		}
	}

	msg, ok := ToInbound(instance.TenantID, update)
	if !ok || m.Inbound == nil {
		return
	}
	m.Inbound(context.Background(), msg, &telegramReplier{client: NewTelegramClient(instance.Bot)})
}

// telegramReplier attaches the request buttons to every intake reply.
type telegramReplier struct {
	client *TelegramClient
}

func (r *telegramReplier) SendMessage(to, content string) error {
	return r.client.SendMessageWithMenu(to, content, RequestKeyboard())
}

// RequestKeyboard is the inline keyboard offered to customers with an open request.
func RequestKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Request status", CallbackRequestStatus),
			tgbotapi.NewInlineKeyboardButtonData("Cancel request", CallbackCancelRequest),
		),
	)
}

// DisconnectBot stops a tenant's bot
func (m *TelegramBotManager) DisconnectBot(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if instance, ok := m.bots[tenantID]; ok {
		close(instance.StopChan)
		delete(m.bots, tenantID)
	}
}

// GetStatus returns connection status for a tenant
func (m *TelegramBotManager) GetStatus(tenantID string) (connected bool, botName string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if instance, ok := m.bots[tenantID]; ok && instance.running() {
		return true, instance.Bot.Self.UserName
	}
	return false, ""
}

// DisconnectAll stops all bots (for graceful shutdown)
func (m *TelegramBotManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, instance := range m.bots {
		close(instance.StopChan)
	}
	m.bots = make(map[string]*TelegramBotInstance)
}
