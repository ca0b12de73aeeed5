package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"liveassist/internal/config"
	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/usecases"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoresSQLite(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "main.db"),
	}
	ctx := context.Background()

	st, err := openStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.close()

	require.NoError(t, st.tenants.EnsureTenant(ctx, "acme", "Acme"))
	tenant, err := st.tenants.GetTenant(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, tenant)

	require.NoError(t, st.settings.SetSetting(ctx, "acme", entities.SettingWelcomeMessage, "Hola"))
	value, err := st.settings.GetSetting(ctx, "acme", entities.SettingWelcomeMessage)
	require.NoError(t, err)
	assert.Equal(t, "Hola", value)
}

func TestBuildNotifiersWithoutBrokers(t *testing.T) {
	cfg := &config.Config{Notifiers: []string{"log"}}
	relay := usecases.NewChannelRelay(nil, zerolog.Nop())

	notifier, cleanup := buildNotifiers(context.Background(), cfg, relay, zerolog.Nop())
	defer cleanup()

	multi, ok := notifier.(infrastructure.MultiNotifier)
	require.True(t, ok)
	assert.Len(t, multi, 2)

	err := notifier.Notify(context.Background(), entities.Event{
		ID:        "ev-1",
		Type:      entities.EventRequestCreated,
		TenantID:  "acme",
		RequestID: "req-1",
		Time:      time.Now(),
	})
	assert.NoError(t, err)
}

func TestRestoreChannelsWithBridgesDisabled(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "main.db"),
	}
	st, err := openStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.close()

	assert.NotPanics(t, func() {
		restoreChannels(context.Background(), "acme", st.settings, nil, nil, zerolog.Nop())
	})
}

func TestSweepSessionsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweepSessions(ctx, infrastructure.NewSessionManager(), zerolog.Nop())
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session sweeper did not stop")
	}
}
