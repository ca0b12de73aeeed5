package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/rs/zerolog"
)

// WhatsAppManager manages per-tenant WhatsApp clients
type WhatsAppManager struct {
	clients map[string]*WhatsAppClient
	mu      sync.RWMutex
	baseDir string
	log     zerolog.Logger

	// Inbound receives every text message of every tenant's device.
	Inbound InboundHandler
}

// NewWhatsAppManager creates a manager storing one device database per tenant under baseDir.
func NewWhatsAppManager(baseDir string, log zerolog.Logger) *WhatsAppManager {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", baseDir).Msg("could not create devices directory")
	}

	return &WhatsAppManager{
		clients: make(map[string]*WhatsAppClient),
		baseDir: baseDir,
		log:     log,
	}
}

// GetClient returns existing client for tenant (nil if not exists)
func (m *WhatsAppManager) GetClient(tenantID string) *WhatsAppClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[tenantID]
}

// DevicePath is the device database of a tenant.
func (m *WhatsAppManager) DevicePath(tenantID string) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("tenant_%s.db", tenantID))
}

// GetOrCreateClient gets existing client or creates new one for tenant
func (m *WhatsAppManager) GetOrCreateClient(ctx context.Context, tenantID string) (*WhatsAppClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[tenantID]; exists {
		return client, nil
	}

	client, err := NewWhatsAppClient(ctx, m.DevicePath(tenantID), tenantID, m.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp client for tenant %s: %w", tenantID, err)
	}
	client.AddHandler(m.eventHandler(client))

	m.clients[tenantID] = client
	return client, nil
}

func (m *WhatsAppManager) eventHandler(client *WhatsAppClient) func(interface{}) {
	return func(evt interface{}) {
		v, ok := evt.(*events.Message)
		if !ok || m.Inbound == nil {
			return
		}
		msg, ok := ParseMessage(client.TenantID, v)
		if !ok {
			return
		}
		go m.Inbound(context.Background(), msg, client)
	}
}

// ConnectClient connects tenant's WhatsApp client (creates if needed)
func (m *WhatsAppManager) ConnectClient(ctx context.Context, tenantID string) (*WhatsAppClient, error) {
	client, err := m.GetOrCreateClient(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if client.Client.IsConnected() {
		return client, nil
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect WhatsApp for tenant %s: %w", tenantID, err)
	}

	return client, nil
}

// LogoutClient logs out tenant's WhatsApp (clears session, shows new QR).
// A missing or already logged out client is not an error.
func (m *WhatsAppManager) LogoutClient(ctx context.Context, tenantID string) error {
	m.mu.RLock()
	client, exists := m.clients[tenantID]
	m.mu.RUnlock()

	if !exists || client == nil {
		return nil
	}

	var err error
	if client.IsLoggedIn() || client.Client.IsConnected() {
		err = client.Logout(ctx)
	}

	m.mu.Lock()
	delete(m.clients, tenantID)
	m.mu.Unlock()

	return err
}

// ConnectedTenants returns tenants with a logged in device.
func (m *WhatsAppManager) ConnectedTenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tenants []string
	for tenantID, client := range m.clients {
		if client.IsLoggedIn() {
			tenants = append(tenants, tenantID)
		}
	}
	return tenants
}

// DisconnectAll disconnects all clients (for graceful shutdown)
func (m *WhatsAppManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Disconnect()
	}
	m.clients = make(map[string]*WhatsAppClient)
}
