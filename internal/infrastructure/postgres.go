package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresClient(ctx context.Context, connString string, log zerolog.Logger) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool, log: log}

	// Auto-migrate schema
	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

var postgresSchema = []struct {
	name string
	ddl  string
}{
	{"tenants", `
		CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"agents", `
		CREATE TABLE IF NOT EXISTS agents (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id),
			username VARCHAR(50) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'agent',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (tenant_id, username)
		);
	`},
	{"assistance_requests", `
		CREATE TABLE IF NOT EXISTS assistance_requests (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			name VARCHAR(120) NOT NULL,
			phone VARCHAR(32) NOT NULL,
			reason TEXT NOT NULL,
			origin_channel VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			priority VARCHAR(16) NOT NULL,
			assigned_to VARCHAR(64),
			assigned_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			internal_note TEXT,
			conversation_summary TEXT,
			last_message_at TIMESTAMPTZ,
			message_seq BIGINT NOT NULL DEFAULT 0,
			tracking_token_hash VARCHAR(128) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CHECK (status <> 'PENDING' OR assigned_to IS NULL),
			CHECK (status <> 'IN_PROGRESS' OR assigned_to IS NOT NULL),
			CHECK ((assigned_to IS NULL) = (assigned_at IS NULL)),
			CHECK ((status IN ('RESOLVED', 'CANCELLED')) = (resolved_at IS NOT NULL))
		);
	`},
	{"assistance_requests queue index", `
		CREATE INDEX IF NOT EXISTS assistance_requests_queue_idx
			ON assistance_requests (tenant_id, status, created_at);
	`},
	{"assistance_requests owner index", `
		CREATE INDEX IF NOT EXISTS assistance_requests_owner_idx
			ON assistance_requests (tenant_id, assigned_to);
	`},
	{"request_messages", `
		CREATE TABLE IF NOT EXISTS request_messages (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64) NOT NULL REFERENCES assistance_requests(id),
			seq BIGINT NOT NULL,
			sender VARCHAR(16) NOT NULL,
			body TEXT NOT NULL,
			agent_id VARCHAR(64),
			sent_at TIMESTAMPTZ NOT NULL,
			UNIQUE (request_id, seq),
			CHECK ((sender = 'AGENT') = (agent_id IS NOT NULL))
		);
	`},
	{"tenant_settings", `
		CREATE TABLE IF NOT EXISTS tenant_settings (
			tenant_id VARCHAR(64) NOT NULL,
			key VARCHAR(64) NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, key)
		);
	`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, step := range postgresSchema {
		if _, err := p.Pool.Exec(ctx, step.ddl); err != nil {
			return fmt.Errorf("create %s: %w", step.name, err)
		}
	}
	p.log.Info().Int("steps", len(postgresSchema)).Msg("postgres schema ready")
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
