package usecases

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/interfaces"

	"golang.org/x/crypto/blake2b"
)

// TrackedRequest is returned once, on public creation; the token is not stored.
type TrackedRequest struct {
	Request       entities.PublicRequest `json:"request"`
	TrackingToken string                 `json:"tracking_token"`
}

// PublicSnapshot is one consistent poll of a request as its customer sees it.
type PublicSnapshot struct {
	Request    entities.PublicRequest   `json:"request"`
	Messages   []entities.PublicMessage `json:"messages"`
	NextCursor int64                    `json:"next_cursor"`
}

// SyncGateway serves pollers. Agents poll through QueueView and MessageLog;
// customers poll here with the tracking token they got on creation.
type SyncGateway struct {
	store        interfaces.Store
	tenants      interfaces.TenantRepository
	lifecycle    *LifecycleManager
	messages     *MessageLog
	pollInterval time.Duration
}

func NewSyncGateway(store interfaces.Store, tenants interfaces.TenantRepository, lifecycle *LifecycleManager, messages *MessageLog, pollInterval time.Duration) *SyncGateway {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &SyncGateway{
		store:        store,
		tenants:      tenants,
		lifecycle:    lifecycle,
		messages:     messages,
		pollInterval: pollInterval,
	}
}

// PollInterval is the cadence advertised to clients.
func (g *SyncGateway) PollInterval() time.Duration {
	return g.pollInterval
}

func newTrackingToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashTrackingToken is the digest stored with the request.
func HashTrackingToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func customer(tenantID string) entities.Caller {
	return entities.Caller{TenantID: tenantID, Role: entities.RoleCustomer}
}

func (g *SyncGateway) requireTenant(ctx context.Context, tenantID string) error {
	if g.tenants == nil {
		return nil
	}
	tenant, err := g.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return entities.NewNotFoundError("tenant")
	}
	return nil
}

// CreatePublic opens a WEB request on behalf of an anonymous customer.
func (g *SyncGateway) CreatePublic(ctx context.Context, tenantID string, in entities.NewRequest) (*TrackedRequest, error) {
	if err := g.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	token, err := newTrackingToken()
	if err != nil {
		return nil, err
	}
	in.OriginChannel = string(entities.ChannelWeb)
	req, err := g.lifecycle.create(ctx, customer(tenantID), in, HashTrackingToken(token))
	if err != nil {
		return nil, err
	}
	return &TrackedRequest{Request: req.PublicView(), TrackingToken: token}, nil
}

// verify answers NOT_FOUND for a wrong token so ids cannot be probed.
func verify(req *entities.AssistanceRequest, token string) error {
	if req.TrackingTokenHash == "" || token == "" {
		return entities.NewNotFoundError("request")
	}
	if subtle.ConstantTimeCompare([]byte(HashTrackingToken(token)), []byte(req.TrackingTokenHash)) != 1 {
		return entities.NewNotFoundError("request")
	}
	return nil
}

// PublicSnapshot reads the request and its messages after since from one snapshot.
func (g *SyncGateway) PublicSnapshot(ctx context.Context, tenantID, id, token string, since int64, limit int) (*PublicSnapshot, error) {
	if since < 0 {
		return nil, entities.NewValidationError("since", "since must be >= 0")
	}
	req, messages, err := g.store.Snapshot(ctx, tenantID, id, since, clampLimit(limit, DefaultMessageLimit))
	if err != nil {
		return nil, err
	}
	if err := verify(req, token); err != nil {
		return nil, err
	}
	page := newPage(messages, since)
	return &PublicSnapshot{Request: req.PublicView(), Messages: entities.PublicMessages(page.Messages), NextCursor: page.NextCursor}, nil
}

func (g *SyncGateway) authorize(ctx context.Context, tenantID, id, token string) error {
	req, err := g.store.GetRequest(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return verify(req, token)
}

// PublicAppend records a CUSTOMER entry.
func (g *SyncGateway) PublicAppend(ctx context.Context, tenantID, id, token, body string) (*entities.PublicMessage, error) {
	if err := g.authorize(ctx, tenantID, id, token); err != nil {
		return nil, err
	}
	m, err := g.messages.Append(ctx, customer(tenantID), id, entities.SenderCustomer, body)
	if err != nil {
		return nil, err
	}
	view := m.PublicView()
	return &view, nil
}

// PublicCancel lets the customer withdraw the request; repeated calls are no-ops.
func (g *SyncGateway) PublicCancel(ctx context.Context, tenantID, id, token string) (*entities.PublicRequest, error) {
	if err := g.authorize(ctx, tenantID, id, token); err != nil {
		return nil, err
	}
	req, err := g.lifecycle.Cancel(ctx, customer(tenantID), id)
	if err != nil {
		return nil, err
	}
	view := req.PublicView()
	return &view, nil
}
