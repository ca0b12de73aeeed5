package entities

import "time"

const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
)

type Agent struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantSetting is a per-tenant key/value used by the channel bridges.
type TenantSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys read by the channel bridges.
const (
	SettingWelcomeMessage  = "welcome_message"
	SettingHandoffMessage  = "handoff_message"
	SettingClosedMessage   = "closed_message"
	SettingTelegramToken   = "telegram_token"
	SettingTelegramEnabled = "telegram_enabled"
)

// RoleCustomer marks calls made on behalf of a remote customer (public widget, channel bridges).
const RoleCustomer = "customer"

// Caller identifies who performs an operation and scopes it to one tenant.
type Caller struct {
	TenantID string
	AgentID  string
	Role     string
}

func (c Caller) IsSupervisor() bool { return c.Role == RoleSupervisor }

func (c Caller) IsCustomer() bool { return c.Role == RoleCustomer }

// Actor is the identity recorded on events and system messages.
func (c Caller) Actor() string {
	if c.AgentID != "" {
		return c.AgentID
	}
	return c.Role
}
