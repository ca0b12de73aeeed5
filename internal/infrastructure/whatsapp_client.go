package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"liveassist/internal/entities"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// WhatsAppClient is one tenant's linked WhatsApp device.
type WhatsAppClient struct {
	Client   *whatsmeow.Client
	TenantID string

	log    zerolog.Logger
	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(ctx context.Context, dbPath, tenantID string, log zerolog.Logger) (*WhatsAppClient, error) {
	log = log.With().Str("bridge", "whatsapp").Str("tenant_id", tenantID).Logger()

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", waLog.Zerolog(log.With().Str("module", "database").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Zerolog(log.With().Str("module", "client").Logger()))

	return &WhatsAppClient{
		Client:   client,
		TenantID: tenantID,
		log:      log,
	}, nil
}

// Connect opens the connection. Without a stored session it starts the
// QR pairing flow; the latest code is available through GetQR.
func (w *WhatsAppClient) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		w.log.Info().Msg("whatsapp connected with existing session")
		return nil
	}
	return w.pair(ctx)
}

func (w *WhatsAppClient) pair(ctx context.Context) error {
	// pairing outlives the call that started it
	qrChan, err := w.Client.GetQRChannel(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("failed to get qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}

	go func() {
		for evt := range qrChan {
			if evt.Event == "code" {
				w.setQR(evt.Code)
				w.log.Info().Msg("whatsapp pairing code generated")
				continue
			}
			if evt.Event == "success" {
				w.setQR("")
			}
			w.log.Info().Str("event", evt.Event).Msg("whatsapp login event")
		}
	}()
	return nil
}

func (w *WhatsAppClient) setQR(code string) {
	w.qrLock.Lock()
	w.qrCode = code
	w.qrLock.Unlock()
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

// IsConnected returns true if client is connected and logged in
func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// GetPhoneNumber returns the connected phone number
func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

// Logout clears the session and starts a new pairing flow.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.setQR("")

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()

	if err := w.pair(ctx); err != nil {
		w.log.Error().Err(err).Msg("failed to reconnect after logout")
		return err
	}
	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

func (w *WhatsAppClient) AddHandler(handler func(interface{})) {
	w.Client.AddEventHandler(handler)
}

func (w *WhatsAppClient) SendMessage(to string, content string) error {
	// Customers are addressed by bare phone number
	jid, err := types.ParseJID(to + "@s.whatsapp.net")
	if err != nil {
		return fmt.Errorf("invalid number format: %w", err)
	}

	_, err = w.Client.SendMessage(context.Background(), jid, &waProto.Message{
		Conversation: &content,
	})
	return err
}

// ParseMessage converts a text message event into an inbound message.
// ok is false for group chats, own messages and non-text payloads.
func ParseMessage(tenantID string, evt *events.Message) (msg entities.InboundMessage, ok bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return entities.InboundMessage{}, false
	}

	var content string
	if evt.Message.Conversation != nil {
		content = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		content = *evt.Message.ExtendedTextMessage.Text
	}
	if strings.TrimSpace(content) == "" {
		return entities.InboundMessage{}, false
	}

	return entities.InboundMessage{
		TenantID: tenantID,
		From:     evt.Info.Sender.User,
		Name:     evt.Info.PushName,
		Content:  content,
		Platform: "whatsapp",
	}, true
}
