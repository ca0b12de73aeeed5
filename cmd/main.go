package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveassist/internal/config"
	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/interfaces"
	"liveassist/internal/interfaces/http"
	"liveassist/internal/repository"
	"liveassist/internal/repository/sqlite"
	"liveassist/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// stores groups the persistence ports one driver provides.
type stores struct {
	requests interfaces.Store
	agents   interfaces.AgentRepository
	tenants  interfaces.TenantRepository
	settings interfaces.SettingsRepository
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return &stores{
			requests: repository.NewStore(pgClient.Pool),
			agents:   repository.NewAgentRepository(pgClient.Pool),
			tenants:  repository.NewTenantRepository(pgClient.Pool),
			settings: repository.NewSettingsRepository(pgClient.Pool),
			close:    pgClient.Close,
		}, nil
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &stores{
		requests: store,
		agents:   store,
		tenants:  store,
		settings: store,
		close:    func() { store.Close() },
	}, nil
}

// buildNotifiers returns the event fan-out and a cleanup for the broker connections.
func buildNotifiers(ctx context.Context, cfg *config.Config, relay *usecases.ChannelRelay, log zerolog.Logger) (interfaces.Notifier, func()) {
	var (
		notifiers infrastructure.MultiNotifier
		cleanups  []func()
	)
	if cfg.NotifierEnabled("log") {
		notifiers = append(notifiers, infrastructure.NewLogNotifier(log))
	}

	if cfg.NotifierEnabled("redis") {
		client, err := infrastructure.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis notifier disabled")
		} else {
			notifiers = append(notifiers, infrastructure.NewRedisNotifier(client, cfg.RedisStream))
			cleanups = append(cleanups, func() { client.Close() })
			log.Info().Str("stream", cfg.RedisStream).Msg("redis notifier enabled")
		}
	}

	if cfg.NotifierEnabled("amqp") {
		conn, err := infrastructure.DialWithRetry(ctx, cfg.AMQPURL, 5, time.Second, log)
		if err != nil {
			log.Error().Err(err).Msg("amqp notifier disabled")
		} else if n, err := infrastructure.NewAMQPNotifier(conn, cfg.AMQPExchange, log); err != nil {
			conn.Close()
			log.Error().Err(err).Msg("amqp notifier disabled")
		} else {
			notifiers = append(notifiers, n)
			cleanups = append(cleanups, func() {
				n.Close()
				conn.Close()
			})
			log.Info().Str("exchange", cfg.AMQPExchange).Msg("amqp notifier enabled")
		}
	}

	notifiers = append(notifiers, relay)
	return notifiers, func() {
		for _, fn := range cleanups {
			fn()
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	relay := usecases.NewChannelRelay(st.settings, log)
	notifier, closeNotifiers := buildNotifiers(ctx, cfg, relay, log)
	defer closeNotifiers()

	// Usecases
	messages := usecases.NewMessageLog(st.requests, notifier, log)
	lifecycle := usecases.NewLifecycleManager(st.requests, messages, notifier, log)
	claims := usecases.NewClaimCoordinator(st.requests, st.agents, notifier, log)
	queue := usecases.NewQueueView(st.requests)
	gateway := usecases.NewSyncGateway(st.requests, st.tenants, lifecycle, messages, cfg.PollInterval)
	authUsecase := usecases.NewAuthUsecase(st.agents, st.tenants, cfg.JWTSecret, cfg.JWTTTL)

	bootstrapTenant := repository.SanitizeTenantID(cfg.BootstrapTenant)
	if bootstrapTenant != "" {
		if err := authUsecase.EnsureSupervisor(ctx, bootstrapTenant, cfg.BootstrapSupervisor, cfg.BootstrapPassword); err != nil {
			log.Warn().Err(err).Str("tenant_id", bootstrapTenant).Msg("failed to ensure supervisor")
		}
	}

	// Channel intake
	sessions := infrastructure.NewSessionManager()
	intakeLimiter := infrastructure.NewMessageRateLimiter(1, 5)
	agentLimiter := infrastructure.NewMessageRateLimiter(cfg.AgentRate, cfg.AgentBurst)
	publicLimiter := infrastructure.NewMessageRateLimiter(cfg.PublicRate, cfg.PublicBurst)
	defer intakeLimiter.Close()
	defer agentLimiter.Close()
	defer publicLimiter.Close()

	intake := usecases.NewIntakeService(st.requests, lifecycle, messages, st.settings, sessions, intakeLimiter, relay, log)

	var telegram *infrastructure.TelegramBotManager
	if cfg.TelegramEnabled {
		telegram = infrastructure.NewTelegramBotManager(st.settings, sessions, log)
		telegram.Inbound = intake.Handle
		defer telegram.DisconnectAll()
	}

	var whatsapp *infrastructure.WhatsAppManager
	if cfg.WhatsAppEnabled {
		whatsapp = infrastructure.NewWhatsAppManager(cfg.WhatsAppDevicesDir, log)
		whatsapp.Inbound = intake.Handle
		defer whatsapp.DisconnectAll()
	}

	if bootstrapTenant != "" {
		restoreChannels(ctx, bootstrapTenant, st.settings, telegram, whatsapp, log)
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	http.SetupRoutes(r, http.Deps{
		Lifecycle:     lifecycle,
		Claims:        claims,
		Messages:      messages,
		Queue:         queue,
		Gateway:       gateway,
		Auth:          authUsecase,
		Settings:      st.settings,
		Telegram:      telegram,
		WhatsApp:      whatsapp,
		Middleware:    http.NewMiddleware(cfg.JWTSecret, log),
		AgentLimiter:  agentLimiter,
		PublicLimiter: publicLimiter,
		Log:           log,
	})

	srv := &nethttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	go sweepSessions(ctx, sessions, log)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// restoreChannels reconnects the bridges a tenant had running before restart.
func restoreChannels(ctx context.Context, tenantID string, settings interfaces.SettingsRepository, telegram *infrastructure.TelegramBotManager, whatsapp *infrastructure.WhatsAppManager, log zerolog.Logger) {
	if telegram != nil {
		enabled, err := settings.GetSetting(ctx, tenantID, entities.SettingTelegramEnabled)
		if err == nil && enabled == "true" {
			if _, err := telegram.ConnectTenant(ctx, tenantID, entities.SettingTelegramToken); err != nil {
				log.Warn().Err(err).Str("tenant_id", tenantID).Msg("telegram not restored")
			}
		}
	}
	if whatsapp != nil {
		if _, err := os.Stat(whatsapp.DevicePath(tenantID)); err == nil {
			if _, err := whatsapp.ConnectClient(ctx, tenantID); err != nil {
				log.Warn().Err(err).Str("tenant_id", tenantID).Msg("whatsapp not restored")
			}
		}
	}
}

func sweepSessions(ctx context.Context, sessions *infrastructure.SessionManager, log zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(30 * time.Minute); n > 0 {
				log.Debug().Int("removed", n).Msg("idle chat sessions swept")
			}
		}
	}
}
